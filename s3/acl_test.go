package s3

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClient_GetPutACL(t *testing.T) {
	var putBody string
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.True(t, r.URL.Query().Has("acl"))
		switch r.Method {
		case http.MethodGet:
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`<AccessControlPolicy>
  <Owner><ID>owner-1</ID><DisplayName>Owner One</DisplayName></Owner>
  <AccessControlList>
    <Grant><Grantee xsi:type="CanonicalUser"><ID>u1</ID><DisplayName>User One</DisplayName></Grantee><Permission>FULL_CONTROL</Permission></Grant>
    <Grant><Grantee xsi:type="Group"><URI>http://acs.amazonaws.com/groups/global/AllUsers</URI></Grantee><Permission>READ</Permission></Grant>
  </AccessControlList>
</AccessControlPolicy>`))
		case http.MethodPut:
			b, _ := io.ReadAll(r.Body)
			putBody = string(b)
			w.WriteHeader(http.StatusOK)
		}
	})
	defer srv.Close()
	defer client.Conn.Ctx.Close()

	ctx := context.Background()
	acl, err := client.GetACL(ctx, "bucket", "key")
	require.NoError(t, err)
	require.Equal(t, "owner-1", acl.OwnerID)
	require.Len(t, acl.Grants, 2)
	require.Equal(t, GranteeCanonicalUser, acl.Grants[0].Type)
	require.Equal(t, "u1", acl.Grants[0].ID)
	require.Equal(t, GranteeGroup, acl.Grants[1].Type)
	require.Equal(t, "http://acs.amazonaws.com/groups/global/AllUsers", acl.Grants[1].URI)

	require.NoError(t, client.PutACL(ctx, "bucket", "key", acl))
	require.Contains(t, putBody, "<ID>owner-1</ID>")
	require.Contains(t, putBody, `xsi:type="Group"`)
}
