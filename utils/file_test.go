package utils

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDiskStorePut(t *testing.T) {
	store := &DiskStore{Root: t.TempDir(), BaseURL: "/uploads/"}
	if err := store.EnsureDir(); err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}

	url, err := store.Put(context.Background(), "evidence/r-1/a.txt", strings.NewReader("proof"), 5, "text/plain")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if url != "/uploads/evidence/r-1/a.txt" {
		t.Errorf("url = %q", url)
	}
	data, err := os.ReadFile(filepath.Join(store.Root, "evidence", "r-1", "a.txt"))
	if err != nil || string(data) != "proof" {
		t.Fatalf("stored file = %q, %v", data, err)
	}
}

func TestDiskStoreRejectsEscapingKeys(t *testing.T) {
	store := &DiskStore{Root: t.TempDir(), BaseURL: "/uploads"}
	if _, err := store.Put(context.Background(), "../../etc/passwd", strings.NewReader("x"), 1, ""); err == nil {
		t.Fatal("expected error for key outside the root")
	}
}

func TestDiskStoreShortBody(t *testing.T) {
	store := &DiskStore{Root: t.TempDir(), BaseURL: "/uploads"}
	if _, err := store.Put(context.Background(), "a.bin", strings.NewReader("abc"), 10, ""); err == nil {
		t.Fatal("expected error when the body is shorter than the declared size")
	}
	if _, err := os.Stat(filepath.Join(store.Root, "a.bin")); !os.IsNotExist(err) {
		t.Errorf("partial file left behind: %v", err)
	}
}

func TestR2OptionsConfigured(t *testing.T) {
	full := R2Options{AccountID: "acc", AccessKeyID: "id", AccessKeySecret: "secret", Bucket: "evidence"}
	if !full.Configured() {
		t.Error("complete options should be configured")
	}
	partial := full
	partial.Bucket = ""
	if partial.Configured() {
		t.Error("options without a bucket should not be configured")
	}
}
