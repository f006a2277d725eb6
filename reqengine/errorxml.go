package reqengine

import (
	"bytes"

	"github.com/emcecs/ecs-go-client/xmlenc"
)

// parseS3ErrorXML extracts the //Error/{Code,Message,Resource,RequestId}
// fields spec.md §5 names (a best-effort parse: a malformed or non-XML body
// simply yields four empty strings, still leaving the HTTP status to carry
// the failure).
func parseS3ErrorXML(body []byte) (code, message, resource, requestID string) {
	d := xmlenc.New()
	capture := func(path string, dst *string) {
		d.On(path, func(_ string, node xmlenc.NodeType, _ []xmlenc.Attr, text string) error {
			if node == xmlenc.Text {
				*dst = text
			}
			return nil
		})
	}
	capture("//Error/Code", &code)
	capture("//Error/Message", &message)
	capture("//Error/Resource", &resource)
	capture("//Error/RequestId", &requestID)

	_ = d.Run(bytes.NewReader(body))
	return code, message, resource, requestID
}
