package s3

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/emcecs/ecs-go-client/cos"
	"github.com/emcecs/ecs-go-client/reqengine"
	"github.com/emcecs/ecs-go-client/xmlenc"
)

// CreateBucket issues a bucket-creation PUT.
func (c *Client) CreateBucket(ctx context.Context, bucket string) error {
	if err := errIfMissingBucket(bucket); err != nil {
		return err
	}
	req := newRequest(http.MethodPut, bucket, "", "")
	_, err := c.do(ctx, req)
	return err
}

// DeleteBucket removes an (empty) bucket.
func (c *Client) DeleteBucket(ctx context.Context, bucket string) error {
	if err := errIfMissingBucket(bucket); err != nil {
		return err
	}
	req := newRequest(http.MethodDelete, bucket, "", "")
	_, err := c.do(ctx, req)
	return err
}

// HeadBucket reports whether bucket exists and is accessible.
func (c *Client) HeadBucket(ctx context.Context, bucket string) error {
	if err := errIfMissingBucket(bucket); err != nil {
		return err
	}
	req := newRequest(http.MethodHead, bucket, "", "")
	_, err := c.do(ctx, req)
	return err
}

// VersioningStatus is the <VersioningConfiguration><Status> value.
type VersioningStatus string

const (
	VersioningEnabled   VersioningStatus = "Enabled"
	VersioningSuspended VersioningStatus = "Suspended"
)

// GetVersioning reads bucket's versioning status. A bucket that has never
// had versioning configured reports an empty status.
func (c *Client) GetVersioning(ctx context.Context, bucket string) (VersioningStatus, error) {
	if err := errIfMissingBucket(bucket); err != nil {
		return "", err
	}
	req := &reqengine.Request{
		Method:   http.MethodGet,
		Path:     resourcePath(bucket, ""),
		RawQuery: "versioning",
		Header:   cos.NewHeaderMap(),
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return "", err
	}
	var status string
	d := xmlenc.New()
	d.On("//VersioningConfiguration/Status", textInto(&status))
	if err := d.Run(bytes.NewReader(resp.Body)); err != nil {
		return "", err
	}
	return VersioningStatus(status), nil
}

// PutVersioning sets bucket's versioning status.
func (c *Client) PutVersioning(ctx context.Context, bucket string, status VersioningStatus) error {
	if err := errIfMissingBucket(bucket); err != nil {
		return err
	}
	body := `<?xml version="1.0" encoding="UTF-8"?><VersioningConfiguration><Status>` +
		string(status) + `</Status></VersioningConfiguration>`
	header := cos.NewHeaderMap()
	header.Set("Content-Type", "application/xml")
	req := &reqengine.Request{
		Method:   http.MethodPut,
		Path:     resourcePath(bucket, ""),
		RawQuery: "versioning",
		Header:   header,
		Payload:  []byte(body),
	}
	_, err := c.do(ctx, req)
	return err
}

// LifecycleRule is one <Rule> entry (spec.md §6: "every field optional").
type LifecycleRule struct {
	ID     string
	Prefix string
	Status string // Enabled / Disabled

	ExpirationDays               int // 0 -> unset
	ExpirationDate               string
	ExpiredObjectDeleteMarker    bool
	NoncurrentVersionExpirationDays int
	AbortIncompleteMultipartUploadDays int
}

// GetLifecycle reads bucket's lifecycle configuration.
func (c *Client) GetLifecycle(ctx context.Context, bucket string) ([]LifecycleRule, error) {
	if err := errIfMissingBucket(bucket); err != nil {
		return nil, err
	}
	req := &reqengine.Request{
		Method:   http.MethodGet,
		Path:     resourcePath(bucket, ""),
		RawQuery: "lifecycle",
		Header:   cos.NewHeaderMap(),
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	return parseLifecycle(resp.Body)
}

// PutLifecycle writes bucket's lifecycle configuration.
func (c *Client) PutLifecycle(ctx context.Context, bucket string, rules []LifecycleRule) error {
	if err := errIfMissingBucket(bucket); err != nil {
		return err
	}
	header := cos.NewHeaderMap()
	header.Set("Content-Type", "application/xml")
	req := &reqengine.Request{
		Method:   http.MethodPut,
		Path:     resourcePath(bucket, ""),
		RawQuery: "lifecycle",
		Header:   header,
		Payload:  buildLifecycle(rules),
	}
	_, err := c.do(ctx, req)
	return err
}

func buildLifecycle(rules []LifecycleRule) []byte {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?><LifecycleConfiguration>`)
	for _, r := range rules {
		sb.WriteString("<Rule>")
		if r.ID != "" {
			sb.WriteString("<ID>" + escapeXML(r.ID) + "</ID>")
		}
		sb.WriteString("<Prefix>" + escapeXML(r.Prefix) + "</Prefix>")
		sb.WriteString("<Status>" + escapeXML(r.Status) + "</Status>")
		if r.ExpirationDays > 0 || r.ExpirationDate != "" || r.ExpiredObjectDeleteMarker {
			sb.WriteString("<Expiration>")
			switch {
			case r.ExpirationDate != "":
				sb.WriteString("<Date>" + escapeXML(r.ExpirationDate) + "</Date>")
			case r.ExpirationDays > 0:
				sb.WriteString("<Days>" + strconv.Itoa(r.ExpirationDays) + "</Days>")
			case r.ExpiredObjectDeleteMarker:
				sb.WriteString("<ExpiredObjectDeleteMarker>true</ExpiredObjectDeleteMarker>")
			}
			sb.WriteString("</Expiration>")
		}
		if r.NoncurrentVersionExpirationDays > 0 {
			sb.WriteString("<NoncurrentVersionExpiration><NoncurrentDays>" +
				strconv.Itoa(r.NoncurrentVersionExpirationDays) + "</NoncurrentDays></NoncurrentVersionExpiration>")
		}
		if r.AbortIncompleteMultipartUploadDays > 0 {
			sb.WriteString("<AbortIncompleteMultipartUpload><DaysAfterInitiation>" +
				strconv.Itoa(r.AbortIncompleteMultipartUploadDays) + "</DaysAfterInitiation></AbortIncompleteMultipartUpload>")
		}
		sb.WriteString("</Rule>")
	}
	sb.WriteString("</LifecycleConfiguration>")
	return []byte(sb.String())
}

func parseLifecycle(body []byte) ([]LifecycleRule, error) {
	var rules []LifecycleRule
	var cur LifecycleRule
	var expDays, noncurDays, abortDays string

	flush := func() {
		if expDays != "" {
			cur.ExpirationDays, _ = strconv.Atoi(expDays)
		}
		if noncurDays != "" {
			cur.NoncurrentVersionExpirationDays, _ = strconv.Atoi(noncurDays)
		}
		if abortDays != "" {
			cur.AbortIncompleteMultipartUploadDays, _ = strconv.Atoi(abortDays)
		}
		rules = append(rules, cur)
	}

	d := xmlenc.New()
	d.On("//LifecycleConfiguration/Rule", func(_ string, node xmlenc.NodeType, _ []xmlenc.Attr, _ string) error {
		if node == xmlenc.ElementStart {
			cur, expDays, noncurDays, abortDays = LifecycleRule{}, "", "", ""
		}
		if node == xmlenc.ElementEnd {
			flush()
		}
		return nil
	})
	d.On("//LifecycleConfiguration/Rule/ID", textInto(&cur.ID))
	d.On("//LifecycleConfiguration/Rule/Prefix", textInto(&cur.Prefix))
	d.On("//LifecycleConfiguration/Rule/Status", textInto(&cur.Status))
	d.On("//LifecycleConfiguration/Rule/Expiration/Days", textInto(&expDays))
	d.On("//LifecycleConfiguration/Rule/Expiration/Date", textInto(&cur.ExpirationDate))
	d.On("//LifecycleConfiguration/Rule/Expiration/ExpiredObjectDeleteMarker", boolInto(&cur.ExpiredObjectDeleteMarker))
	d.On("//LifecycleConfiguration/Rule/NoncurrentVersionExpiration/NoncurrentDays", textInto(&noncurDays))
	d.On("//LifecycleConfiguration/Rule/AbortIncompleteMultipartUpload/DaysAfterInitiation", textInto(&abortDays))

	if err := d.Run(bytes.NewReader(body)); err != nil {
		return nil, err
	}
	return rules, nil
}
