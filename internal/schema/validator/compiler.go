package validator

import (
	"bytes"
	"embed"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed entityHistory.json
var embedded embed.FS

// EmbedLoader resolves embed:// urls against the schemas compiled into the binary.
type EmbedLoader struct{}

func newEmbedLoader() *EmbedLoader {
	return &EmbedLoader{}
}

func (EmbedLoader) Load(url string) (any, error) {
	fileName := strings.TrimPrefix(url, "embed://")
	raw, err := embedded.ReadFile(fileName)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(raw))
}

// GetCompiler returns a compiler able to resolve the embedded schemas.
func GetCompiler() *jsonschema.Compiler {
	compiler := jsonschema.NewCompiler()
	compiler.DefaultDraft(jsonschema.Draft7)

	compiler.UseLoader(jsonschema.SchemeURLLoader{
		"embed": newEmbedLoader(),
	})
	return compiler
}
