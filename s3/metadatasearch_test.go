package s3

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClient_GetMetadataSearchConfig(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.True(t, r.URL.Query().Has("searchmetadata"))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`<MetadataSearchList>
  <MetadataSearchEnabled>true</MetadataSearchEnabled>
  <OptionalAttributes>
    <Attribute><Name>ContentType</Name><Datatype>String</Datatype></Attribute>
  </OptionalAttributes>
  <IndexableKeys>
    <Key><Name>x-amz-meta-region</Name><Datatype>String</Datatype></Key>
    <Key><Name>x-amz-meta-size</Name><Datatype>Integer</Datatype></Key>
  </IndexableKeys>
</MetadataSearchList>`))
	})
	defer srv.Close()
	defer client.Conn.Ctx.Close()

	cfg, err := client.GetMetadataSearchConfig(context.Background(), "bucket")
	require.NoError(t, err)
	require.True(t, cfg.Enabled)
	require.Len(t, cfg.OptionalAttributes, 1)
	require.Equal(t, "ContentType", cfg.OptionalAttributes[0].Name)
	require.Len(t, cfg.IndexableKeys, 2)
	require.Equal(t, "Integer", cfg.IndexableKeys[1].Datatype)
}

func TestClient_Query(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "x-amz-meta-region==us-east-1", r.URL.Query().Get("query"))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`<BucketQueryResult>
  <Name>bucket</Name>
  <IsTruncated>false</IsTruncated>
  <ObjectMatches>
    <object>
      <objectName>key1</objectName>
      <objectId>id1</objectId>
      <versionId>v1</versionId>
      <queryMds><type>SYSMD</type><mdMap><entry><key>Size</key><value>42</value></entry></mdMap></queryMds>
      <queryMds><type>USERMD</type><mdMap><entry><key>region</key><value>us-east-1</value></entry></mdMap></queryMds>
    </object>
  </ObjectMatches>
</BucketQueryResult>`))
	})
	defer srv.Close()
	defer client.Conn.Ctx.Close()

	result, err := client.Query(context.Background(), "bucket", "x-amz-meta-region==us-east-1", "", 0)
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	m := result.Matches[0]
	require.Equal(t, "key1", m.ObjectName)
	require.Equal(t, "42", m.SystemMD["Size"])
	require.Equal(t, "us-east-1", m.UserMD["region"])
}
