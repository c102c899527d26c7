/*
Package decoding is used to default to jsoniter for mapping files. Qualifier
expressions are read from and written as their textual form.
*/
package decoding

import (
	"reflect"
	"strings"
	"unsafe"

	jsoniter "github.com/json-iterator/go"
	"github.com/modern-go/reflect2"

	"github.com/skuid/graphmap/exp"
)

var expressionType = reflect.TypeOf((*exp.Expression)(nil))

// Config specifies options for the mapping decoder
type Config struct {
	TagKey string
}

// JsonIter Extension for mapping files
type graphmapExtension struct {
	jsoniter.DummyExtension
	config *Config
}

func (extension *graphmapExtension) UpdateStructDescriptor(structDescriptor *jsoniter.StructDescriptor) {
	for _, binding := range structDescriptor.Fields {
		tag, hasTag := binding.Field.Tag().Lookup(extension.config.TagKey)
		if !hasTag {
			continue
		}
		for _, option := range strings.Split(tag, ",")[1:] {
			if option == "writeonly" {
				// computed on build, never read from a file
				binding.FromNames = []string{}
			}
		}
	}
}

func (extension *graphmapExtension) CreateDecoder(typ reflect2.Type) jsoniter.ValDecoder {
	if typ.Type1() == expressionType {
		return expressionDecoder{}
	}
	return nil
}

func (extension *graphmapExtension) CreateEncoder(typ reflect2.Type) jsoniter.ValEncoder {
	if typ.Type1() == expressionType {
		return expressionEncoder{}
	}
	return nil
}

type expressionDecoder struct{}

func (expressionDecoder) Decode(ptr unsafe.Pointer, iter *jsoniter.Iterator) {
	target := (**exp.Expression)(ptr)
	if iter.ReadNil() {
		*target = nil
		return
	}
	text := iter.ReadString()
	if iter.Error != nil {
		return
	}
	e, err := exp.Parse(text)
	if err != nil {
		iter.ReportError("decode expression", err.Error())
		return
	}
	*target = e
}

type expressionEncoder struct{}

func (expressionEncoder) IsEmpty(ptr unsafe.Pointer) bool {
	return *(**exp.Expression)(ptr) == nil
}

func (expressionEncoder) Encode(ptr unsafe.Pointer, stream *jsoniter.Stream) {
	e := *(**exp.Expression)(ptr)
	if e == nil {
		stream.WriteNil()
		return
	}
	stream.WriteString(e.String())
}

// GetDecoder returns a decoder that implements the standard encoding/json api
func GetDecoder(config *Config) jsoniter.API {
	if config == nil {
		config = &Config{}
	}
	if config.TagKey == "" {
		config.TagKey = "json"
	}
	api := jsoniter.Config{
		EscapeHTML:             true,
		SortMapKeys:            true,
		ValidateJsonRawMessage: true,
		OnlyTaggedField:        true,
		TagKey:                 config.TagKey,
	}.Froze()
	api.RegisterExtension(&graphmapExtension{
		config: config,
	})
	return api
}
