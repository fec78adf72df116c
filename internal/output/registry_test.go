package output

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	Name string   `json:"name"`
	On   []string `json:"on"`
}

func TestRegistry_RegisterAndEncode(t *testing.T) {
	r := NewRegistry()
	r.Register("plain", func(w io.Writer, v any) error {
		_, err := fmt.Fprint(w, v)
		return err
	})

	var buf bytes.Buffer
	require.NoError(t, r.Encode(&buf, "plain", "hello"))
	assert.Equal(t, "hello", buf.String())
}

func TestRegistry_UnknownFormat(t *testing.T) {
	r := DefaultRegistry()

	_, err := r.Encoder("xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown output format "xml"`)
	assert.Contains(t, err.Error(), "json, yaml")
}

func TestRegistry_Formats(t *testing.T) {
	r := DefaultRegistry()
	r.Register("table", EncodeJSON)

	assert.Equal(t, []string{"json", "table", "yaml"}, r.Formats())
}

func TestRegistry_Overwrite(t *testing.T) {
	r := NewRegistry()
	r.Register("fmt", func(w io.Writer, _ any) error { _, err := io.WriteString(w, "one"); return err })
	r.Register("fmt", func(w io.Writer, _ any) error { _, err := io.WriteString(w, "two"); return err })

	var buf bytes.Buffer
	require.NoError(t, r.Encode(&buf, "fmt", nil))
	assert.Equal(t, "two", buf.String())
}

func TestEncodeYAML_UsesJSONTags(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeYAML(&buf, []item{{Name: "rspec", On: []string{"added"}}}))

	assert.Contains(t, buf.String(), "- name: rspec\n")
	assert.Contains(t, buf.String(), "  - added\n")
	assert.NotContains(t, buf.String(), "Name")
}

func TestEncodeJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeJSON(&buf, item{Name: "vet", On: []string{"removed"}}))

	assert.JSONEq(t, `{"name":"vet","on":["removed"]}`, buf.String())
	assert.Contains(t, buf.String(), "\n  \"name\"")
}
