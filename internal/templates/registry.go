package templates

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/compose-network/factory-deployer/internal/logger"
)

const artifactExt = ".json"

var (
	ErrTemplateNotFound  = errors.New("template not found")
	ErrNoMatchingVersion = errors.New("no template version satisfies constraint")
)

type (
	// Template is a published contract blueprint: a named, versioned creation bytecode plus ABI.
	Template struct {
		Name     string
		Version  *semver.Version
		ABI      abi.ABI
		RawABI   string
		Bytecode []byte
		Path     string
	}

	// Registry resolves templates laid out as <dir>/<name>/<version>.json.
	Registry struct {
		dir    string
		logger *slog.Logger
	}

	artifact struct {
		ABI      json.RawMessage `json:"abi"`
		Bytecode bytecode        `json:"bytecode"`
	}

	// bytecode accepts both the solc/Hardhat string form and the Foundry {"object": ...} form.
	bytecode string
)

func (b *bytecode) UnmarshalJSON(data []byte) error {
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		*b = bytecode(plain)
		return nil
	}

	var foundry struct {
		Object string `json:"object"`
	}
	if err := json.Unmarshal(data, &foundry); err != nil {
		return fmt.Errorf("bytecode must be a hex string or an object with 'object': %w", err)
	}
	*b = bytecode(foundry.Object)

	return nil
}

// NewRegistry creates a registry rooted at dir.
func NewRegistry(dir string) *Registry {
	return &Registry{
		dir:    dir,
		logger: logger.Named("templates"),
	}
}

// Versions lists the published versions of a template, highest first.
func (r *Registry) Versions(name string) ([]*semver.Version, error) {
	templateDir := filepath.Join(r.dir, name)
	entries, err := os.ReadDir(templateDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: '%s', expected artifacts at %s", ErrTemplateNotFound, name, r.layout(name))
		}
		return nil, fmt.Errorf("failed to read template directory '%s': %w", templateDir, err)
	}

	var versions []*semver.Version
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != artifactExt {
			continue
		}

		raw := strings.TrimSuffix(entry.Name(), artifactExt)
		version, err := semver.NewVersion(raw)
		if err != nil {
			r.logger.With("template", name).With("file", entry.Name()).Warn("skipping artifact with non-semver name")
			continue
		}
		versions = append(versions, version)
	}

	if len(versions) == 0 {
		return nil, fmt.Errorf("%w: '%s' has no versioned artifacts, expected %s", ErrTemplateNotFound, name, r.layout(name))
	}

	sort.Sort(sort.Reverse(semver.Collection(versions)))

	return versions, nil
}

func (r *Registry) layout(name string) string {
	return filepath.Join(r.dir, name, "<semver>"+artifactExt)
}

// Resolve loads the highest version of name that satisfies constraint. An empty constraint
// selects the latest version.
func (r *Registry) Resolve(name, constraint string) (*Template, error) {
	versions, err := r.Versions(name)
	if err != nil {
		return nil, err
	}

	var selected *semver.Version
	if strings.TrimSpace(constraint) == "" {
		selected = versions[0]
	} else {
		c, err := semver.NewConstraint(constraint)
		if err != nil {
			return nil, fmt.Errorf("invalid version constraint '%s': %w", constraint, err)
		}
		for _, v := range versions {
			if c.Check(v) {
				selected = v
				break
			}
		}
	}

	if selected == nil {
		return nil, fmt.Errorf("%w: '%s' %s", ErrNoMatchingVersion, name, constraint)
	}

	path := filepath.Join(r.dir, name, selected.Original()+artifactExt)
	template, err := Load(path)
	if err != nil {
		return nil, err
	}
	template.Name = name
	template.Version = selected

	r.logger.
		With("template", name).
		With("version", selected.String()).
		Info("template resolved")

	return template, nil
}

// Load parses a single artifact file.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	template, err := parseArtifact(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse artifact '%s': %w", path, err)
	}
	template.Path = path

	return template, nil
}

func parseArtifact(data []byte) (*Template, error) {
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	if len(a.ABI) == 0 {
		return nil, errors.New("artifact has no abi")
	}

	parsedABI, err := abi.JSON(strings.NewReader(string(a.ABI)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}

	bytecodeHex := strings.TrimPrefix(strings.TrimSpace(string(a.Bytecode)), "0x")
	if bytecodeHex == "" {
		return nil, errors.New("artifact has no creation bytecode")
	}
	if strings.Contains(bytecodeHex, "__") {
		return nil, errors.New("artifact bytecode has unlinked library placeholders")
	}

	code, err := hexutil.Decode("0x" + bytecodeHex)
	if err != nil {
		return nil, fmt.Errorf("failed to decode bytecode: %w", err)
	}

	return &Template{
		ABI:      parsedABI,
		RawABI:   string(a.ABI),
		Bytecode: code,
	}, nil
}
