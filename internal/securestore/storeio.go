package securestore

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// File is one sealed JSON state file.
type File struct {
	Path       string
	Passphrase string
	Purpose    string
	KDF        KDFParams
}

// Configured reports whether both a path and a passphrase are set.
func (f File) Configured() bool {
	return strings.TrimSpace(f.Path) != "" && f.Passphrase != ""
}

// Exists reports whether the file is present on disk.
func (f File) Exists() bool {
	_, err := os.Stat(f.Path)
	return err == nil
}

// ReadJSON opens the file and decodes its JSON body into v. A missing file
// returns an error satisfying errors.Is(err, os.ErrNotExist).
func (f File) ReadJSON(v any) error {
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return err
	}
	plain, err := Open(f.Passphrase, f.Purpose, raw)
	if err != nil {
		return err
	}
	defer wipe(plain)
	if err := json.Unmarshal(plain, v); err != nil {
		return errors.Join(ErrInvalid, err)
	}
	return nil
}

// WriteJSON seals v and replaces the file through a rename, so readers see
// either the old or the new snapshot.
func (f File) WriteJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	defer wipe(payload)
	sealed, err := Seal(f.Passphrase, f.Purpose, f.KDF, payload)
	if err != nil {
		return err
	}
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.Path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(sealed); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, f.Path)
}
