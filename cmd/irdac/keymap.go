package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// keymapFile is the on-disk keymap format:
//
//	codes:
//	  - name: UP_SONY
//	    command: volume_up
//	    family: sony
//	    protocol: sony
//	    code: 0x00004BA5
//
// mask defaults to the full 32 bits, or to the stable prefix for family apple.
type keymapFile struct {
	Codes []keymapFileEntry `yaml:"codes"`
}

type keymapFileEntry struct {
	Name     string  `yaml:"name"`
	Command  string  `yaml:"command"`
	Family   string  `yaml:"family"`
	Protocol string  `yaml:"protocol"`
	Code     uint32  `yaml:"code"`
	Mask     *uint32 `yaml:"mask,omitempty"`
}

// LoadKeymapFile parses and validates a keymap file.
func LoadKeymapFile(path string) (*Keymap, error) {
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("read keymap: %w", err)
	}
	return parseKeymap(b)
}

func parseKeymap(b []byte) (*Keymap, error) {
	var kf keymapFile
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&kf); err != nil {
		return nil, fmt.Errorf("decode keymap yaml: %w", err)
	}
	if len(kf.Codes) == 0 {
		return nil, fmt.Errorf("keymap has no codes")
	}

	entries := make([]KeymapEntry, 0, len(kf.Codes))
	for i, c := range kf.Codes {
		cmd, err := parseCommandKind(c.Command)
		if err != nil {
			return nil, fmt.Errorf("keymap codes[%d]: %w", i, err)
		}
		fam, err := parseRemoteFamily(c.Family)
		if err != nil {
			return nil, fmt.Errorf("keymap codes[%d]: %w", i, err)
		}
		proto, err := parseIRProtocol(c.Protocol)
		if err != nil {
			return nil, fmt.Errorf("keymap codes[%d]: %w", i, err)
		}
		mask := maskExact
		if fam == FamilyApple {
			mask = maskAppleStable
		}
		if c.Mask != nil {
			mask = *c.Mask
		}
		name := c.Name
		if name == "" {
			name = fmt.Sprintf("codes[%d]", i)
		}
		entries = append(entries, KeymapEntry{
			Name:     name,
			Command:  cmd,
			Family:   fam,
			Protocol: proto,
			Code:     c.Code,
			Mask:     mask,
		})
	}
	return NewKeymap(entries)
}

// watchKeymap reloads the keymap file into dec whenever it is written or
// replaced. A file that fails to parse is logged and the previous keymap
// stays active. Blocks until ctx is canceled.
func watchKeymap(ctx context.Context, path string, dec *Decoder, logger *slog.Logger) error {
	path = filepath.Clean(ExpandPath(path))

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("keymap watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors and config managers replace files by rename,
	// which drops a watch placed on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("keymap watch %s: %w", filepath.Dir(path), err)
	}
	logger.Info("watching keymap", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			km, err := LoadKeymapFile(path)
			if err != nil {
				logger.Warn("keymap reload failed; keeping previous keymap", "path", path, "error", err)
				continue
			}
			_ = dec.SetKeymap(km)
			logger.Info("keymap reloaded", "path", path, "entries", len(km.entries))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("keymap watcher error", "error", err)
		}
	}
}
