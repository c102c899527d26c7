package testdata

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc"
	"github.com/skuid/graphmap/exp"
	"github.com/skuid/graphmap/mapping"
)

// MapName is the name of the fixture map
const MapName = "testmap"

// Artist is the class mapped by the Artist entity
type Artist struct {
	ArtistID    int64     `json:"artistId"`
	ArtistName  string    `json:"artistName"`
	DateOfBirth time.Time `json:"dateOfBirth"`
	Paintings   []Painting
}

// Painting is the class mapped by the Painting entity
type Painting struct {
	PaintingID     int64   `json:"paintingId"`
	PaintingTitle  string  `json:"paintingTitle"`
	EstimatedPrice float64 `json:"estimatedPrice"`
	Artist         *Artist
	Gallery        *Gallery
}

// Gallery is the class mapped by the Gallery entity
type Gallery struct {
	GalleryID int64  `json:"galleryId"`
	Name      string `json:"name"`
	Paintings []Painting
}

type table struct {
	name    string
	pks     []string
	columns []string
}

type dbRel struct {
	source, name, target string
	joins                [][2]string
	toMany, toDepPK      bool
}

type objEntity struct {
	name, table, super string
	class              interface{}
	abstract           bool
	qualifier          string
	attributes         [][2]string
	relationships      [][3]string
}

var tables = []table{
	{"ARTIST", []string{"ARTIST_ID"}, []string{"ARTIST_NAME", "DATE_OF_BIRTH"}},
	{"PAINTING", []string{"PAINTING_ID"}, []string{"PAINTING_TITLE", "ARTIST_ID", "GALLERY_ID", "ESTIMATED_PRICE"}},
	{"GALLERY", []string{"GALLERY_ID"}, []string{"GALLERY_NAME"}},
	{"EXHIBIT", []string{"EXHIBIT_ID"}, []string{"GALLERY_ID", "OPENING_DATE", "CLOSING_DATE"}},
	{"ARTIST_EXHIBIT", []string{"ARTIST_ID", "EXHIBIT_ID"}, nil},
	{"PAINTING_INFO", []string{"PAINTING_ID"}, []string{"TEXT_REVIEW"}},
	{"PERSON", []string{"PERSON_ID"}, []string{"NAME", "PERSON_TYPE"}},
}

var dbRels = []dbRel{
	{"ARTIST", "paintingArray", "PAINTING", [][2]string{{"ARTIST_ID", "ARTIST_ID"}}, true, false},
	{"ARTIST", "artistExhibitArray", "ARTIST_EXHIBIT", [][2]string{{"ARTIST_ID", "ARTIST_ID"}}, true, false},
	{"PAINTING", "toArtist", "ARTIST", [][2]string{{"ARTIST_ID", "ARTIST_ID"}}, false, false},
	{"PAINTING", "toGallery", "GALLERY", [][2]string{{"GALLERY_ID", "GALLERY_ID"}}, false, false},
	{"PAINTING", "toPaintingInfo", "PAINTING_INFO", [][2]string{{"PAINTING_ID", "PAINTING_ID"}}, false, true},
	{"GALLERY", "paintingArray", "PAINTING", [][2]string{{"GALLERY_ID", "GALLERY_ID"}}, true, false},
	{"GALLERY", "exhibitArray", "EXHIBIT", [][2]string{{"GALLERY_ID", "GALLERY_ID"}}, true, false},
	{"EXHIBIT", "toGallery", "GALLERY", [][2]string{{"GALLERY_ID", "GALLERY_ID"}}, false, false},
	{"EXHIBIT", "artistExhibitArray", "ARTIST_EXHIBIT", [][2]string{{"EXHIBIT_ID", "EXHIBIT_ID"}}, true, false},
	{"ARTIST_EXHIBIT", "toArtist", "ARTIST", [][2]string{{"ARTIST_ID", "ARTIST_ID"}}, false, false},
	{"ARTIST_EXHIBIT", "toExhibit", "EXHIBIT", [][2]string{{"EXHIBIT_ID", "EXHIBIT_ID"}}, false, false},
	{"PAINTING_INFO", "painting", "PAINTING", [][2]string{{"PAINTING_ID", "PAINTING_ID"}}, false, false},
}

var objEntities = []objEntity{
	{
		name: "Artist", table: "ARTIST", class: Artist{},
		attributes: [][2]string{{"artistName", "ARTIST_NAME"}, {"dateOfBirth", "DATE_OF_BIRTH"}},
		relationships: [][3]string{
			{"paintings", "Painting", "paintingArray"},
			{"artistExhibits", "ArtistExhibit", "artistExhibitArray"},
			{"exhibits", "Exhibit", "artistExhibitArray.toExhibit"},
		},
	},
	{
		name: "Painting", table: "PAINTING", class: Painting{},
		attributes: [][2]string{{"paintingTitle", "PAINTING_TITLE"}, {"estimatedPrice", "ESTIMATED_PRICE"}},
		relationships: [][3]string{
			{"artist", "Artist", "toArtist"},
			{"gallery", "Gallery", "toGallery"},
			{"paintingInfo", "PaintingInfo", "toPaintingInfo"},
		},
	},
	{
		name: "Gallery", table: "GALLERY", class: Gallery{},
		attributes: [][2]string{{"name", "GALLERY_NAME"}},
		relationships: [][3]string{
			{"paintings", "Painting", "paintingArray"},
			{"exhibits", "Exhibit", "exhibitArray"},
		},
	},
	{
		name: "Exhibit", table: "EXHIBIT",
		attributes: [][2]string{{"openingDate", "OPENING_DATE"}, {"closingDate", "CLOSING_DATE"}},
		relationships: [][3]string{
			{"gallery", "Gallery", "toGallery"},
			{"artistExhibits", "ArtistExhibit", "artistExhibitArray"},
		},
	},
	{
		name: "ArtistExhibit", table: "ARTIST_EXHIBIT",
		relationships: [][3]string{
			{"artist", "Artist", "toArtist"},
			{"exhibit", "Exhibit", "toExhibit"},
		},
	},
	{
		name: "PaintingInfo", table: "PAINTING_INFO",
		attributes:    [][2]string{{"textReview", "TEXT_REVIEW"}},
		relationships: [][3]string{{"painting", "Painting", "painting"}},
	},
	{
		name: "AbstractPerson", table: "PERSON", abstract: true,
		attributes: [][2]string{{"name", "NAME"}, {"personType", "PERSON_TYPE"}},
	},
	{name: "Employee", super: "AbstractPerson", qualifier: "personType in ('EE', 'EM')"},
	{name: "Manager", super: "Employee", qualifier: "personType = 'EM'"},
	{name: "ClientContact", super: "AbstractPerson", qualifier: "personType = 'C'"},
}

/*
NewDataMap builds the artist/painting/gallery fixture map:

	Artist 1-M Painting M-1 Gallery 1-M Exhibit
	Artist M-M Exhibit through ARTIST_EXHIBIT (the flattened Artist.exhibits)
	Painting 1-1 PaintingInfo, which shares its primary key
	AbstractPerson > Employee > Manager and AbstractPerson > ClientContact
	share PERSON and are told apart by PERSON_TYPE

It panics on a broken fixture.
*/
func NewDataMap() *mapping.DataMap {
	m := mapping.NewDataMap(MapName)

	for _, t := range tables {
		e := mapping.NewDbEntity(t.name)
		for _, pk := range t.pks {
			must(e.AddAttribute(mapping.NewPrimaryKey(pk, "INTEGER")))
		}
		for _, col := range t.columns {
			must(e.AddAttribute(mapping.NewDbAttribute(col, "VARCHAR")))
		}
		must(m.AddDbEntity(e))
	}
	m.DbEntity("ARTIST").DbAttribute("ARTIST_NAME").Mandatory = true
	m.DbEntity("PAINTING").DbAttribute("PAINTING_TITLE").Mandatory = true

	for _, r := range dbRels {
		rel := mapping.NewDbRelationship(r.name, r.target)
		must(m.DbEntity(r.source).AddRelationship(rel))
		for _, j := range r.joins {
			rel.AddJoin(mapping.NewDbJoin(j[0], j[1]))
		}
		rel.SetToMany(r.toMany)
		rel.SetToDependentPK(r.toDepPK)
	}

	for _, o := range objEntities {
		e := mapping.NewObjEntity(o.name)
		must(m.AddObjEntity(e))
		e.SetDbEntityName(o.table)
		e.SetSuperEntityName(o.super)
		e.Abstract = o.abstract
		if o.class != nil {
			e.SetClassName(mapping.ClassNameOf(reflect.TypeOf(o.class)))
		}
		if o.qualifier != "" {
			e.Qualifier = exp.MustParse(o.qualifier)
		}
		for _, a := range o.attributes {
			must(e.AddAttribute(mapping.NewObjAttribute(a[0], "string", a[1])))
		}
		for _, r := range o.relationships {
			rel := mapping.NewObjRelationship(r[0], r[1])
			must(e.AddRelationship(rel))
			rel.SetDbRelationshipPath(r[2])
		}
	}

	proc := mapping.NewProcedure("artists_by_name")
	proc.Parameters = []mapping.ProcedureParameter{{Name: "name", Type: "VARCHAR"}}
	must(m.AddProcedure(proc))

	q := mapping.NewQueryDescriptor("ArtistsByName", "Artist")
	q.Qualifier = "artistName like $name"
	q.Orderings = []mapping.OrderingDescriptor{{Path: "artistName"}}
	must(m.AddQueryDescriptor(q))

	return m
}

// NewResolver attaches a fresh fixture map to a new resolver
func NewResolver(opts ...mapping.ResolverOption) *mapping.EntityResolver {
	return mapping.NewEntityResolver([]*mapping.DataMap{NewDataMap()}, opts...)
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// FmtSQL will take a multi-line SQL string and transform it into a single
// line SQL string. Really useful for tests, where you want to see the full
// query, but it'd be too long to put on one line.
func FmtSQL(sql string) string {
	str := strings.Replace(heredoc.Doc(sql), "\n", " ", -1)
	str = strings.Replace(str, "\t", "", -1)
	return strings.Trim(str, " ")
}

//FmtSQLRegex will covert a multiline/heredoc SQL statement into a REGEX version,
// which is useful for testing mock SQL calls. This allows the user to write out
// the SQL without worrying about tabs, newlines, and escaping characters like
// ., $, (, ). It also adds the ^ at the beginning.
func FmtSQLRegex(sql string) string {
	str := FmtSQL(sql)
	str = strings.Replace(str, ".", "\\.", -1)
	str = strings.Replace(str, "$", "\\$", -1)
	str = strings.Replace(str, "(", "\\(", -1)
	str = strings.Replace(str, ")", "\\)", -1)
	return fmt.Sprintf("^%s$", str)
}
