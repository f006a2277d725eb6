package s3

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	"github.com/emcecs/ecs-go-client/cos"
	"github.com/emcecs/ecs-go-client/reqengine"
	"github.com/emcecs/ecs-go-client/xmlenc"
)

// GranteeType matches the Grantee "type" attribute S3's ACL XML carries.
type GranteeType string

const (
	GranteeCanonicalUser GranteeType = "CanonicalUser"
	GranteeGroup         GranteeType = "Group"
)

// Grant is one ACL entry: a grantee plus the permission granted.
type Grant struct {
	Type        GranteeType
	ID          string // CanonicalUser
	URI         string // Group
	DisplayName string
	Permission  string
}

// AccessControlPolicy is the full ACL document (spec.md §6).
type AccessControlPolicy struct {
	OwnerID          string
	OwnerDisplayName string
	Grants           []Grant
}

// GetACL reads the ACL currently set on bucket/key (key == "" for the
// bucket's own ACL).
func (c *Client) GetACL(ctx context.Context, bucket, key string) (AccessControlPolicy, error) {
	if err := errIfMissingBucket(bucket); err != nil {
		return AccessControlPolicy{}, err
	}
	req := &reqengine.Request{
		Method:   http.MethodGet,
		Path:     resourcePath(bucket, key),
		RawQuery: "acl",
		Header:   cos.NewHeaderMap(),
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return AccessControlPolicy{}, err
	}
	return parseACL(resp.Body)
}

// PutACL writes acl onto bucket/key (key == "" for the bucket's own ACL).
func (c *Client) PutACL(ctx context.Context, bucket, key string, acl AccessControlPolicy) error {
	if err := errIfMissingBucket(bucket); err != nil {
		return err
	}
	header := cos.NewHeaderMap()
	header.Set("Content-Type", "application/xml")
	req := &reqengine.Request{
		Method:   http.MethodPut,
		Path:     resourcePath(bucket, key),
		RawQuery: "acl",
		Header:   header,
		Payload:  buildACL(acl),
	}
	_, err := c.do(ctx, req)
	return err
}

func buildACL(acl AccessControlPolicy) []byte {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	sb.WriteString("<AccessControlPolicy><Owner><ID>")
	sb.WriteString(escapeXML(acl.OwnerID))
	sb.WriteString("</ID><DisplayName>")
	sb.WriteString(escapeXML(acl.OwnerDisplayName))
	sb.WriteString("</DisplayName></Owner><AccessControlList>")
	for _, g := range acl.Grants {
		sb.WriteString(`<Grant><Grantee xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:type="`)
		sb.WriteString(string(g.Type))
		sb.WriteString(`">`)
		switch g.Type {
		case GranteeCanonicalUser:
			sb.WriteString("<ID>")
			sb.WriteString(escapeXML(g.ID))
			sb.WriteString("</ID><DisplayName>")
			sb.WriteString(escapeXML(g.DisplayName))
			sb.WriteString("</DisplayName>")
		case GranteeGroup:
			sb.WriteString("<URI>")
			sb.WriteString(escapeXML(g.URI))
			sb.WriteString("</URI>")
		}
		sb.WriteString("</Grantee><Permission>")
		sb.WriteString(escapeXML(g.Permission))
		sb.WriteString("</Permission></Grant>")
	}
	sb.WriteString("</AccessControlList></AccessControlPolicy>")
	return []byte(sb.String())
}

func parseACL(body []byte) (AccessControlPolicy, error) {
	var acl AccessControlPolicy
	var cur Grant
	var granteeType string

	d := xmlenc.New()
	d.On("//AccessControlPolicy/Owner/ID", textInto(&acl.OwnerID))
	d.On("//AccessControlPolicy/Owner/DisplayName", textInto(&acl.OwnerDisplayName))
	d.On("//AccessControlPolicy/AccessControlList/Grant", func(_ string, node xmlenc.NodeType, _ []xmlenc.Attr, _ string) error {
		if node == xmlenc.ElementStart {
			cur = Grant{}
		}
		if node == xmlenc.ElementEnd {
			acl.Grants = append(acl.Grants, cur)
		}
		return nil
	})
	d.On("//AccessControlPolicy/AccessControlList/Grant/Grantee", func(_ string, node xmlenc.NodeType, attrs []xmlenc.Attr, _ string) error {
		if node != xmlenc.ElementStart {
			return nil
		}
		for _, a := range attrs {
			if a.Name == "xsi:type" || a.Name == "type" {
				granteeType = a.Value
			}
		}
		cur.Type = GranteeType(granteeType)
		return nil
	})
	d.On("//AccessControlPolicy/AccessControlList/Grant/Grantee/ID", textInto(&cur.ID))
	d.On("//AccessControlPolicy/AccessControlList/Grant/Grantee/URI", textInto(&cur.URI))
	d.On("//AccessControlPolicy/AccessControlList/Grant/Grantee/DisplayName", textInto(&cur.DisplayName))
	d.On("//AccessControlPolicy/AccessControlList/Grant/Permission", textInto(&cur.Permission))

	if err := d.Run(bytes.NewReader(body)); err != nil {
		return AccessControlPolicy{}, err
	}
	return acl, nil
}
