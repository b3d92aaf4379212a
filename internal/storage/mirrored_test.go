package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
)

// memObjects is an in-memory objectAPI.
type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func newMemObjects() *memObjects {
	return &memObjects{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memObjects) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, nil
}

func (m *memObjects) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[*in.Key]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (m *memObjects) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *memObjects) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[*in.Key] = data
	m.types[*in.Key] = *in.ContentType
	return &s3.PutObjectOutput{}, nil
}

func newTestMirror(t *testing.T) (*Mirrored, *memObjects) {
	t.Helper()
	objs := newMemObjects()
	bucket := &Bucket{api: objs, name: "decks", prefix: "slidevoice/lecture"}
	return NewMirrored(NewLocalStore(t.TempDir()), bucket, zerolog.Nop()), objs
}

func TestMirrored_SaveWritesBoth(t *testing.T) {
	m, objs := newTestMirror(t)
	ctx := context.Background()

	if err := m.Save(ctx, "manifest.json", []byte(`{}`), "application/json"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !m.local.Valid("manifest.json") {
		t.Error("local copy missing")
	}
	if got := string(objs.objects["slidevoice/lecture/manifest.json"]); got != "{}" {
		t.Errorf("remote object = %q", got)
	}
}

func TestMirrored_RemoteFailureIsNotFatal(t *testing.T) {
	m, objs := newTestMirror(t)
	objs.putErr = errors.New("connection refused")

	if err := m.Save(context.Background(), "manifest.json", []byte(`{}`), "application/json"); err != nil {
		t.Fatalf("Save returned remote error: %v", err)
	}
	if !m.local.Valid("manifest.json") {
		t.Error("local copy missing")
	}
}

func TestMirrored_Mirror(t *testing.T) {
	m, objs := newTestMirror(t)
	ctx := context.Background()

	if err := os.WriteFile(m.local.Path("lecture_combined.pptx"), []byte("PK"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := m.Mirror(ctx, "lecture_combined.pptx"); err != nil {
		t.Fatalf("Mirror: %v", err)
	}
	key := "slidevoice/lecture/lecture_combined.pptx"
	if string(objs.objects[key]) != "PK" {
		t.Errorf("object = %q", objs.objects[key])
	}
	if objs.types[key] != ContentTypeFromExt(".pptx") {
		t.Errorf("content type = %q", objs.types[key])
	}

	if err := m.Mirror(ctx, "missing.wav"); err == nil {
		t.Error("Mirror of a missing file should fail")
	}
}

func TestMirrored_OpenRestoresFromRemote(t *testing.T) {
	m, objs := newTestMirror(t)
	ctx := context.Background()
	objs.objects["slidevoice/lecture/manifest.json"] = []byte(`{"version":1}`)

	if !m.Exists(ctx, "manifest.json") {
		t.Fatal("Exists should see the remote object")
	}
	rc, err := m.Open(ctx, "manifest.json")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != `{"version":1}` {
		t.Errorf("data = %q", data)
	}
	if !m.local.Valid("manifest.json") {
		t.Error("remote copy not restored locally")
	}

	if m.Exists(ctx, "transcripts/slide_01.json") {
		t.Error("Exists should be false for a missing key")
	}
	if _, err := m.Open(ctx, "transcripts/slide_01.json"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Open missing = %v, want fs.ErrNotExist", err)
	}
}

func TestBucket_ObjectKey(t *testing.T) {
	tests := []struct{ prefix, want string }{
		{"", "tts/slide_01.wav"},
		{".", "tts/slide_01.wav"},
		{"a/deck", "a/deck/tts/slide_01.wav"},
	}
	for _, tt := range tests {
		b := &Bucket{prefix: tt.prefix}
		if got := b.object("tts/slide_01.wav"); got != tt.want {
			t.Errorf("prefix %q: object = %q, want %q", tt.prefix, got, tt.want)
		}
	}
}
