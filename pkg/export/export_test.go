package export

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/sharescan/pkg/scan"
)

var bom = []byte{0xEF, 0xBB, 0xBF}

func hostRecords() []scan.ShareRecord {
	return []scan.ShareRecord{
		{Server: `\\HOST`, ShareName: "Public", ShareType: scan.ShareTypeDisk, Comment: "", Permission: scan.PermissionAll, Note: scan.NoteOpenToAll},
		{Server: `\\HOST`, ShareName: "ADMIN$", ShareType: scan.ShareTypeDisk, Comment: "Remote Admin", Permission: scan.PermissionRead, Note: scan.NoteAdministrative},
	}
}

func TestEncodeExactBytes(t *testing.T) {
	data, err := Marshal(hostRecords(), Format{})
	require.NoError(t, err)

	want := string(bom) +
		`"Server","Share","Type","Comment","Permissions","Notes"` + "\n" +
		`"\\HOST","Public","Disk","","All","open to all"` + "\n" +
		`"\\HOST","ADMIN$","Disk","Remote Admin","Read","administrative share"` + "\n"
	assert.Equal(t, want, string(data))
}

func TestEncodeEmpty(t *testing.T) {
	data, err := Marshal(nil, Format{})
	require.NoError(t, err)
	assert.Equal(t, string(bom)+`"Server","Share","Type","Comment","Permissions","Notes"`+"\n", string(data))
}

func TestEncodeQuoting(t *testing.T) {
	records := []scan.ShareRecord{{Server: "H", ShareName: "Q", ShareType: scan.ShareTypeDisk, Comment: `say "hi", ok`, Permission: scan.PermissionRead, Note: scan.NoteOK}}

	data, err := Marshal(records, Format{})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"say ""hi"", ok"`)

	legacy, err := Marshal(records, Format{LegacyQuoting: true})
	require.NoError(t, err)
	assert.Contains(t, string(legacy), `"say "hi", ok"`)
}

func TestDecodeRoundTrip(t *testing.T) {
	records := append(hostRecords(),
		scan.ShareRecord{Server: "fs01", ShareName: "Données", ShareType: scan.ShareTypePrintQueue, Comment: "line1\nline2, \"x\"", Permission: scan.PermissionUnknown, Note: scan.NotePermissionsUnavailable},
	)

	data, err := Marshal(records, Format{})
	require.NoError(t, err)

	got, err := Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestDecodeWithoutBOMAndLegacy(t *testing.T) {
	legacy, err := Marshal(hostRecords(), Format{LegacyQuoting: true})
	require.NoError(t, err)

	got, err := Decode(bytes.NewReader(bytes.TrimPrefix(legacy, bom)))
	require.NoError(t, err)
	assert.Equal(t, hostRecords(), got)
}

func TestDecodeRejectsBadReports(t *testing.T) {
	_, err := Decode(strings.NewReader(""))
	assert.Error(t, err)

	_, err = Decode(strings.NewReader("a,b,c,d,e,f\n"))
	assert.Error(t, err)

	_, err = Decode(strings.NewReader(`"Server","Share","Type","Comment","Permissions","Notes"` + "\n" + `"x","y"` + "\n"))
	assert.Error(t, err)
}

func TestExportToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shares.csv")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0644))

	e := NewExporter(Format{})
	require.NoError(t, e.Export(context.Background(), hostRecords(), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, bom))
	assert.Contains(t, string(data), `"ADMIN$"`)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files are left behind")
}

func TestExportFailure(t *testing.T) {
	e := NewExporter(Format{})
	dest := filepath.Join(t.TempDir(), "missing", "shares.csv")

	err := e.Export(context.Background(), hostRecords(), dest)
	var exportErr *ExportError
	require.True(t, errors.As(err, &exportErr))
	assert.Equal(t, dest, exportErr.Destination)

	err = e.Export(context.Background(), hostRecords(), "  ")
	assert.True(t, errors.As(err, &exportErr))
}

type fakeS3 struct {
	bucket, key string
	body        []byte
	err         error
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.bucket = aws.ToString(in.Bucket)
	f.key = aws.ToString(in.Key)
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &s3.PutObjectOutput{}, nil
}

func TestExportToS3(t *testing.T) {
	client := &fakeS3{}
	e := NewExporter(Format{}, WithS3Client(client))

	require.NoError(t, e.Export(context.Background(), hostRecords(), "s3://audit/reports/host.csv"))
	assert.Equal(t, "audit", client.bucket)
	assert.Equal(t, "reports/host.csv", client.key)

	want, err := Marshal(hostRecords(), Format{})
	require.NoError(t, err)
	assert.Equal(t, want, client.body)

	client.err = errors.New("bucket gone")
	err = e.Export(context.Background(), hostRecords(), "s3://audit/host.csv")
	var exportErr *ExportError
	require.True(t, errors.As(err, &exportErr))
	assert.Equal(t, "s3://audit/host.csv", exportErr.Destination)
}

func TestParseS3URL(t *testing.T) {
	bucket, key, err := ParseS3URL("s3://b/k/x.csv")
	require.NoError(t, err)
	assert.Equal(t, "b", bucket)
	assert.Equal(t, "k/x.csv", key)

	for _, bad := range []string{"s3://bucket", "s3://bucket/", "s3:///key", "http://b/k"} {
		_, _, err := ParseS3URL(bad)
		assert.Error(t, err, bad)
	}
}
