package objectstore

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	objects map[string][]byte
}

var _ Client = (*fakeClient)(nil)

func (f *fakeClient) ListObjects(_ context.Context, _ string, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	for key, data := range f.objects {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			out = append(out, ObjectInfo{Key: key, Size: int64(len(data))})
		}
	}
	return out, nil
}

func (f *fakeClient) GetObject(_ context.Context, _ string, key string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.objects[key])), nil
}

func (f *fakeClient) PutObject(_ context.Context, _ string, key string, body io.Reader, _ int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.objects[key] = data
	return nil
}

func (f *fakeClient) BucketExists(context.Context, string) (bool, error) { return true, nil }
func (f *fakeClient) MakeBucket(context.Context, string) error           { return nil }

func TestPullMirrorsCustomerPrefix(t *testing.T) {
	client := &fakeClient{objects: map[string][]byte{
		"acme/katalog.csv":       []byte("sku;name\n1;a"),
		"acme/docs/vertrag.pdf":  []byte("pdfdata"),
		"other/private.txt":      []byte("not yours"),
		"acme/uploads/":          nil,
		"acme/../escape/out.txt": []byte("traversal"),
	}}

	dest := t.TempDir()
	puller := NewPuller(client, "uploads", nil)

	pulled, err := puller.Pull(context.Background(), "acme", dest)
	require.NoError(t, err)
	assert.Equal(t, 2, pulled)

	data, err := os.ReadFile(filepath.Join(dest, "katalog.csv"))
	require.NoError(t, err)
	assert.Equal(t, "sku;name\n1;a", string(data))

	_, err = os.Stat(filepath.Join(dest, "docs", "vertrag.pdf"))
	assert.NoError(t, err)

	// Nothing from the other customer's prefix lands locally.
	_, err = os.Stat(filepath.Join(dest, "private.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestPullEmptyPrefix(t *testing.T) {
	client := &fakeClient{objects: map[string][]byte{}}
	puller := NewPuller(client, "uploads", nil)

	pulled, err := puller.Pull(context.Background(), "acme", t.TempDir())
	require.NoError(t, err)
	assert.Zero(t, pulled)
}
