/*
Graphmap maps persistent Go types onto relational tables and plans the
queries that read them.

Mapping:

A DataMap holds the two layers of a mapping. DbEntities describe tables, their
columns and the foreign keys between them. ObjEntities describe persistent
types, their attributes and relationships, each mapped onto a path through the
db layer. Maps are usually loaded from JSON or YAML files.

	maps, err := loader.LoadFiles("maps/artists.yaml", "maps/paintings.json")
	res := mapping.NewEntityResolver(maps)

Paths:

Object paths like "paintings.gallery.name" resolve to the attributes and
relationships they cross, translate into db paths like
"paintingArray.toGallery.GALLERY_NAME" and can be re-rooted at a related
entity. A trailing "+" on a relationship token asks for an outer join.

Queries:

	q := query.NewSelect(query.EntityRoot("Artist")).
		Where(exp.MustParse("paintings.estimatedPrice > 1000")).
		OrderBy(query.Asc("artistName")).
		Prefetch("paintings", query.Disjoint).
		SharedCache("artists")

Resolving a query yields its Metadata: the root entity, the result shape, the
split aliases and the cache key. Routing hands the query to the engine of its
data map and adds one query per disjoint prefetch.

Runtime:

A Runtime runs routed queries on sqlengine Engines and caches their results.
Sessions add a private cache and commit batches of inserts, updates and
deletes in one transaction.

	rt, err := graphmap.Open(cfg, logger)
	result, err := rt.Select(ctx, q)
	insert := batch.NewInsert(rt.Resolver().DbEntity("ARTIST"))
	insert.Add(batch.NewRow(id, map[string]interface{}{"ARTIST_NAME": "Monet"}))
	n, err := rt.NewSession().Commit(ctx, insert)
*/
package graphmap
