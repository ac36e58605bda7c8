package crypto

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
)

func TestKeystoreDefaultsToStandardScrypt(t *testing.T) {
	if KeystoreScryptN != keystore.StandardScryptN || KeystoreScryptP != keystore.StandardScryptP {
		t.Fatalf("keystore scrypt defaults lowered: n=%d p=%d", KeystoreScryptN, KeystoreScryptP)
	}
}

func useLightScrypt(t *testing.T) {
	t.Helper()
	n, p := KeystoreScryptN, KeystoreScryptP
	KeystoreScryptN, KeystoreScryptP = keystore.LightScryptN, keystore.LightScryptP
	t.Cleanup(func() { KeystoreScryptN, KeystoreScryptP = n, p })
}

func TestSaveAndLoadKeystore(t *testing.T) {
	useLightScrypt(t)
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	path := filepath.Join(t.TempDir(), "keys", "wallet.keystore")
	if err := SaveToKeystore(path, key, "pass"); err != nil {
		t.Fatalf("save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600, got %v", info.Mode().Perm())
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var file struct {
		Crypto struct {
			KDFParams struct {
				N int `json:"n"`
			} `json:"kdfparams"`
		} `json:"crypto"`
	}
	if err := json.Unmarshal(raw, &file); err != nil {
		t.Fatalf("decode keystore: %v", err)
	}
	if file.Crypto.KDFParams.N != keystore.LightScryptN {
		t.Fatalf("keystore written with n=%d", file.Crypto.KDFParams.N)
	}

	loaded, err := LoadFromKeystore(path, "pass")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Address() != key.Address() {
		t.Fatalf("loaded %s, want %s", loaded.Address(), key.Address())
	}
	if _, err := LoadFromKeystore(path, "wrong"); err == nil {
		t.Fatalf("expected wrong passphrase to fail")
	}
}

func TestLoadOrCreateKeystore(t *testing.T) {
	useLightScrypt(t)
	path := filepath.Join(t.TempDir(), "wallet.keystore")
	first, created, err := LoadOrCreateKeystore(path, "pass")
	if err != nil || !created {
		t.Fatalf("create: created=%v err=%v", created, err)
	}
	second, created, err := LoadOrCreateKeystore(path, "pass")
	if err != nil || created {
		t.Fatalf("reload: created=%v err=%v", created, err)
	}
	if first.Address() != second.Address() {
		t.Fatalf("reload changed key: %s vs %s", first.Address(), second.Address())
	}
}

func TestPrivateKeyFromBytes(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	parsed, err := PrivateKeyFromBytes(key.D.FillBytes(make([]byte, 32)))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Address() != key.Address() {
		t.Fatalf("parsed %s, want %s", parsed.Address(), key.Address())
	}
	if _, err := PrivateKeyFromBytes([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected short secret to fail")
	}
}
