package s3

import (
	"bytes"
	"context"
	"net/http"
	"strconv"

	"github.com/emcecs/ecs-go-client/cos"
	"github.com/emcecs/ecs-go-client/reqengine"
	"github.com/emcecs/ecs-go-client/xmlenc"
)

// MetadataKey is one searchable system or user metadata key (spec.md §6,
// Datatype in {String, Integer, Decimal, Datetime}).
type MetadataKey struct {
	Name     string
	Datatype string
}

// MetadataSearchConfig is bucket's `?searchmetadata` configuration.
type MetadataSearchConfig struct {
	Enabled            bool
	OptionalAttributes []MetadataKey
	IndexableKeys      []MetadataKey
}

// GetMetadataSearchConfig reads bucket's metadata-search configuration.
func (c *Client) GetMetadataSearchConfig(ctx context.Context, bucket string) (MetadataSearchConfig, error) {
	if err := errIfMissingBucket(bucket); err != nil {
		return MetadataSearchConfig{}, err
	}
	req := &reqengine.Request{
		Method:   http.MethodGet,
		Path:     resourcePath(bucket, ""),
		RawQuery: "searchmetadata",
		Header:   cos.NewHeaderMap(),
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return MetadataSearchConfig{}, err
	}
	return parseMetadataSearchConfig(resp.Body)
}

func parseMetadataSearchConfig(body []byte) (MetadataSearchConfig, error) {
	var cfg MetadataSearchConfig
	var curAttr, curKey MetadataKey

	d := xmlenc.New()
	d.On("//MetadataSearchList/MetadataSearchEnabled", boolInto(&cfg.Enabled))

	d.On("//MetadataSearchList/OptionalAttributes/Attribute", func(_ string, node xmlenc.NodeType, _ []xmlenc.Attr, _ string) error {
		if node == xmlenc.ElementStart {
			curAttr = MetadataKey{}
		}
		if node == xmlenc.ElementEnd {
			cfg.OptionalAttributes = append(cfg.OptionalAttributes, curAttr)
		}
		return nil
	})
	d.On("//MetadataSearchList/OptionalAttributes/Attribute/Name", textInto(&curAttr.Name))
	d.On("//MetadataSearchList/OptionalAttributes/Attribute/Datatype", textInto(&curAttr.Datatype))

	d.On("//MetadataSearchList/IndexableKeys/Key", func(_ string, node xmlenc.NodeType, _ []xmlenc.Attr, _ string) error {
		if node == xmlenc.ElementStart {
			curKey = MetadataKey{}
		}
		if node == xmlenc.ElementEnd {
			cfg.IndexableKeys = append(cfg.IndexableKeys, curKey)
		}
		return nil
	})
	d.On("//MetadataSearchList/IndexableKeys/Key/Name", textInto(&curKey.Name))
	d.On("//MetadataSearchList/IndexableKeys/Key/Datatype", textInto(&curKey.Datatype))

	if err := d.Run(bytes.NewReader(body)); err != nil {
		return MetadataSearchConfig{}, err
	}
	return cfg, nil
}

// BucketQueryMatch is one <object> entry in a BucketQueryResult.
type BucketQueryMatch struct {
	ObjectName string
	ObjectID   string
	VersionID  string
	SystemMD   map[string]string
	UserMD     map[string]string
}

// BucketQueryResult is one page of a metadata-search query.
type BucketQueryResult struct {
	Name        string
	NextMarker  string
	IsTruncated bool
	Matches     []BucketQueryMatch
}

// Query runs a metadata-search query (bucket's `?query=<expr>` endpoint).
func (c *Client) Query(ctx context.Context, bucket, expr, marker string, maxKeys int) (BucketQueryResult, error) {
	if err := errIfMissingBucket(bucket); err != nil {
		return BucketQueryResult{}, err
	}
	rawQuery := "query=" + expr
	if marker != "" {
		rawQuery += "&marker=" + marker
	}
	if maxKeys > 0 {
		rawQuery += "&max-keys=" + strconv.Itoa(maxKeys)
	}
	req := &reqengine.Request{
		Method:   http.MethodGet,
		Path:     resourcePath(bucket, ""),
		RawQuery: rawQuery,
		Header:   cos.NewHeaderMap(),
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return BucketQueryResult{}, err
	}
	return parseBucketQueryResult(resp.Body)
}

func parseBucketQueryResult(body []byte) (BucketQueryResult, error) {
	var result BucketQueryResult
	var cur BucketQueryMatch
	var mdType, mdKey string

	flush := func() { result.Matches = append(result.Matches, cur) }

	d := xmlenc.New()
	d.On("//BucketQueryResult/Name", textInto(&result.Name))
	d.On("//BucketQueryResult/NextMarker", textInto(&result.NextMarker))
	d.On("//BucketQueryResult/IsTruncated", boolInto(&result.IsTruncated))

	d.On("//BucketQueryResult/ObjectMatches/object", func(_ string, node xmlenc.NodeType, _ []xmlenc.Attr, _ string) error {
		if node == xmlenc.ElementStart {
			cur = BucketQueryMatch{SystemMD: map[string]string{}, UserMD: map[string]string{}}
		}
		if node == xmlenc.ElementEnd {
			flush()
		}
		return nil
	})
	d.On("//BucketQueryResult/ObjectMatches/object/objectName", textInto(&cur.ObjectName))
	d.On("//BucketQueryResult/ObjectMatches/object/objectId", textInto(&cur.ObjectID))
	d.On("//BucketQueryResult/ObjectMatches/object/versionId", textInto(&cur.VersionID))
	d.On("//BucketQueryResult/ObjectMatches/object/queryMds/type", textInto(&mdType))
	d.On("//BucketQueryResult/ObjectMatches/object/queryMds/mdMap/entry/key", textInto(&mdKey))
	d.On("//BucketQueryResult/ObjectMatches/object/queryMds/mdMap/entry/value", func(_ string, node xmlenc.NodeType, _ []xmlenc.Attr, text string) error {
		if node != xmlenc.Text {
			return nil
		}
		if mdType == "USERMD" {
			cur.UserMD[mdKey] = text
		} else {
			cur.SystemMD[mdKey] = text
		}
		return nil
	})

	if err := d.Run(bytes.NewReader(body)); err != nil {
		return BucketQueryResult{}, err
	}
	return result, nil
}
