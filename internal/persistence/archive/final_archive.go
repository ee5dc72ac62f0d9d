package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"lastoasis.ai/internal/persistence/snapshot"
)

const snapshotName = "world.json.zst"

type FinalArchiveMeta struct {
	Snapshot   string `json:"snapshot"`
	SHA256     string `json:"sha256"`
	FinishedAt string `json:"finished_at"`
	CreatedAt  string `json:"created_at"`
	Agents     int    `json:"agents"`
	Survivors  int    `json:"survivors"`
	Zones      int    `json:"zones"`
}

// ArchiveFinalSnapshot stores a finished world under
// `dataDir/archives/final_<finished-at>/` as zstd-compressed JSON plus a
// meta.json. It returns archived=false for worlds that are still running or
// were already archived.
func ArchiveFinalSnapshot(dataDir string, snap snapshot.WorldV1) (archivedPath string, archived bool, err error) {
	if snap.Status != "FINISHED" {
		return "", false, nil
	}
	dir := filepath.Join(dataDir, "archives", "final_"+snap.UpdatedAt.UTC().Format("20060102T150405Z"))
	dst := filepath.Join(dir, snapshotName)
	if _, err := os.Stat(dst); err == nil {
		return dst, false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", false, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, err
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return "", false, fmt.Errorf("encode final snapshot: %w", err)
	}
	if err := writeZstd(dst, raw); err != nil {
		return "", false, err
	}

	sum := sha256.Sum256(raw)
	meta := FinalArchiveMeta{
		Snapshot:   snapshotName,
		SHA256:     hex.EncodeToString(sum[:]),
		FinishedAt: snap.UpdatedAt.UTC().Format(time.RFC3339Nano),
		CreatedAt:  time.Now().UTC().Format(time.RFC3339Nano),
		Agents:     len(snap.Agents),
		Survivors:  snap.AliveAgents(),
		Zones:      len(snap.Zones),
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(dir, "meta.json"), b, 0o644)
	}
	return dst, true, nil
}

func writeZstd(path string, raw []byte) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if _, err := zw.Write(raw); err != nil {
		_ = zw.Close()
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := zw.Close(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// ReadFinalSnapshot decodes an archived world.
func ReadFinalSnapshot(path string) (snapshot.WorldV1, error) {
	var snap snapshot.WorldV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal(raw, &snap); err != nil {
		return snap, fmt.Errorf("decode final snapshot: %w", err)
	}
	return snap, nil
}

// ReadMeta loads the meta.json that sits next to an archived snapshot.
func ReadMeta(archivedPath string) (FinalArchiveMeta, error) {
	var meta FinalArchiveMeta
	b, err := os.ReadFile(filepath.Join(filepath.Dir(archivedPath), "meta.json"))
	if err != nil {
		return meta, err
	}
	err = json.Unmarshal(b, &meta)
	return meta, err
}
