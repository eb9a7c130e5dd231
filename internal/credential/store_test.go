package credential

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func testCredential() *Credential {
	return &Credential{
		Cookies: map[string]string{
			"SESSDATA": "sess-value",
			"bili_jct": "csrf-value",
		},
		AccessToken:  "access-123",
		RefreshToken: "refresh-456",
		ExpiresAt:    time.Now().Add(720 * time.Hour).Unix(),
		AccountID:    "10001",
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "auth.json"))
	want := testCredential()

	if err := store.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestFileStore_LoadMissing(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "auth.json"))
	got, err := store.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil credential for missing file, got %+v", got)
	}
}

func TestFileStore_CorruptFileIsAbsence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	got, err := NewFileStore(path).Load()
	if err != nil {
		t.Fatalf("corrupt file must not be a fatal error, got %v", err)
	}
	if got != nil {
		t.Errorf("expected nil credential, got %+v", got)
	}
}

func TestFileStore_IncompleteCredentialIsAbsence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.json")
	if err := os.WriteFile(path, []byte(`{"access_token":"only-this"}`), 0600); err != nil {
		t.Fatal(err)
	}
	got, err := NewFileStore(path).Load()
	if err != nil || got != nil {
		t.Errorf("expected (nil, nil), got (%+v, %v)", got, err)
	}
}

func TestFileStore_SaveRejectsIncomplete(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "auth.json"))
	if err := store.Save(&Credential{AccessToken: "x"}); err == nil {
		t.Fatal("expected error saving incomplete credential")
	}
}

func TestFileStore_OverwriteKeepsLatest(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(filepath.Join(dir, "auth.json"))

	first := testCredential()
	if err := store.Save(first); err != nil {
		t.Fatal(err)
	}
	second := testCredential()
	second.AccessToken = "access-new"
	if err := store.Save(second); err != nil {
		t.Fatal(err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got.AccessToken != "access-new" {
		t.Errorf("expected latest credential, got token %q", got.AccessToken)
	}

	// No stray temp files after successful renames.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".auth-") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestFileStore_Clear(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "auth.json"))
	if err := store.Save(testCredential()); err != nil {
		t.Fatal(err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got, _ := store.Load(); got != nil {
		t.Errorf("expected cleared store, got %+v", got)
	}
	// Clearing twice is fine.
	if err := store.Clear(); err != nil {
		t.Fatalf("second clear: %v", err)
	}
}

func TestCredential_ExpiryChecks(t *testing.T) {
	now := time.Now()
	cred := testCredential()
	cred.ExpiresAt = now.Add(time.Hour).Unix()

	if cred.Expired(now) {
		t.Error("credential should not be expired an hour early")
	}
	if !cred.Expired(now.Add(2 * time.Hour)) {
		t.Error("credential should be expired an hour late")
	}
	if !cred.ExpiresWithin(now, 2*time.Hour) {
		t.Error("expiry inside lead window not detected")
	}
	if cred.ExpiresWithin(now, 10*time.Minute) {
		t.Error("expiry outside lead window wrongly detected")
	}
}

func TestCredential_CookieHeader(t *testing.T) {
	cred := testCredential()
	got := cred.CookieHeader()
	want := "SESSDATA=sess-value; bili_jct=csrf-value"
	if got != want {
		t.Errorf("cookie header = %q, want %q", got, want)
	}
	if (&Credential{}).CookieHeader() != "" {
		t.Error("empty credential should render no header")
	}
}

func TestCredential_CloneIsDeep(t *testing.T) {
	cred := testCredential()
	clone := cred.Clone()
	clone.Cookies["SESSDATA"] = "changed"
	if cred.Cookies["SESSDATA"] == "changed" {
		t.Error("clone shares cookie map with original")
	}
}
