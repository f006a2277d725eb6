package xmlenc

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var errStop = errors.New("stop")

func TestDispatch_ElementAndTextPaths(t *testing.T) {
	doc := `<?xml version="1.0"?><ListBucketResult><Name>bucket</Name><Contents><Key>obj</Key></Contents></ListBucketResult>`

	var name, key string
	d := New()
	d.On("//ListBucketResult/Name", func(path string, node NodeType, attrs []Attr, text string) error {
		if node == Text {
			name = text
		}
		return nil
	})
	d.On("//ListBucketResult/Contents/Key", func(path string, node NodeType, attrs []Attr, text string) error {
		if node == Text {
			key = text
		}
		return nil
	})

	require.NoError(t, d.Run(strings.NewReader(doc)))
	require.Equal(t, "bucket", name)
	require.Equal(t, "obj", key)
}

func TestDispatch_EmptyElementSynthesizesEndEvent(t *testing.T) {
	doc := `<DeleteResult/>`
	var events []NodeType
	d := New()
	d.On("//DeleteResult", func(path string, node NodeType, attrs []Attr, text string) error {
		events = append(events, node)
		return nil
	})
	require.NoError(t, d.Run(strings.NewReader(doc)))
	require.Equal(t, []NodeType{ElementStart, ElementEnd}, events)
}

func TestDispatch_AttributesOnElementStart(t *testing.T) {
	doc := `<AccessControlList><Grant><Grantee type="CanonicalUser"><ID>abc</ID></Grantee></Grant></AccessControlList>`
	var granteeType string
	d := New()
	d.On("//AccessControlList/Grant/Grantee", func(path string, node NodeType, attrs []Attr, text string) error {
		if node != ElementStart {
			return nil
		}
		for _, a := range attrs {
			if a.Name == "type" {
				granteeType = a.Value
			}
		}
		return nil
	})
	require.NoError(t, d.Run(strings.NewReader(doc)))
	require.Equal(t, "CanonicalUser", granteeType)
}

func TestDispatch_WildcardHandlerSeesEveryEvent(t *testing.T) {
	doc := `<a><b>x</b></a>`
	count := 0
	d := New()
	d.On("", func(path string, node NodeType, attrs []Attr, text string) error {
		count++
		return nil
	})
	require.NoError(t, d.Run(strings.NewReader(doc)))
	require.Equal(t, 5, count) // a-start, b-start, text, b-end, a-end
}

func TestDispatch_RejectsDTD(t *testing.T) {
	doc := `<!DOCTYPE foo [ <!ENTITY bar "baz"> ]><a/>`
	d := New()
	err := d.Run(strings.NewReader(doc))
	require.Error(t, err)
}

func TestDispatch_HandlerErrorTerminatesScan(t *testing.T) {
	doc := `<a><b/><c/></a>`
	seen := []string{}
	d := New()
	d.On("", func(path string, node NodeType, attrs []Attr, text string) error {
		seen = append(seen, path)
		if path == "//a/b" && node == ElementStart {
			return errStop
		}
		return nil
	})
	err := d.Run(strings.NewReader(doc))
	require.ErrorIs(t, err, errStop)
	require.NotContains(t, seen, "//a/c")
}
