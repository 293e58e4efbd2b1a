// Package resource embeds icon and version metadata into Windows stub
// executables. Platforms without embeddable resources skip this step
// entirely, which is not an error per the packaging contract.
package resource

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tc-hib/winres"
	"github.com/tc-hib/winres/version"
	"gopkg.in/yaml.v3"
)

// langEnglishUS is the language ID version strings are registered under.
const langEnglishUS uint16 = 0x0409

// VersionResource is the YAML document referenced by the descriptor's
// output.version_resource field.
type VersionResource struct {
	// FileVersion is the four-part file version, e.g. "1.2.3.0".
	FileVersion string `yaml:"file_version"`
	// ProductVersion is the product version string.
	ProductVersion string `yaml:"product_version"`
	// Strings are free-form version strings (ProductName, CompanyName,
	// FileDescription, LegalCopyright and so on).
	Strings map[string]string `yaml:"strings"`
}

// LoadVersionResource reads and parses a version resource file.
func LoadVersionResource(path string) (*VersionResource, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read version resource: %w", err)
	}

	var vr VersionResource
	if err := yaml.Unmarshal(contents, &vr); err != nil {
		return nil, fmt.Errorf("unmarshal version resource: %w", err)
	}

	return &vr, nil
}

// Embed rewrites the executable at exePath with the provided icon and
// version resources. Either input may be empty; with both empty the
// executable is left untouched.
func Embed(exePath, iconPath string, vr *VersionResource) error {
	if iconPath == "" && vr == nil {
		return nil
	}

	rs := &winres.ResourceSet{}

	if iconPath != "" {
		if err := setIcon(rs, iconPath); err != nil {
			return err
		}
	}

	if vr != nil {
		if err := setVersionInfo(rs, vr); err != nil {
			return err
		}
	}

	return rewriteEXE(exePath, rs)
}

// setIcon loads an .ico file into the resource set.
func setIcon(rs *winres.ResourceSet, iconPath string) error {
	file, err := os.Open(filepath.Clean(iconPath))
	if err != nil {
		return fmt.Errorf("open icon: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	icon, err := winres.LoadICO(file)
	if err != nil {
		return fmt.Errorf("load icon: %w", err)
	}

	if err = rs.SetIcon(winres.Name("APP"), icon); err != nil {
		return fmt.Errorf("set icon: %w", err)
	}

	return nil
}

// setVersionInfo converts the YAML version resource into a VS_VERSIONINFO block.
func setVersionInfo(rs *winres.ResourceSet, vr *VersionResource) error {
	var vi version.Info

	if vr.FileVersion != "" {
		vi.SetFileVersion(vr.FileVersion)
	}

	if vr.ProductVersion != "" {
		vi.SetProductVersion(vr.ProductVersion)
	}

	for key, value := range vr.Strings {
		if err := vi.Set(langEnglishUS, key, value); err != nil {
			return fmt.Errorf("set version string %s: %w", key, err)
		}
	}

	rs.SetVersionInfo(vi)

	return nil
}

// rewriteEXE writes the resource set into a copy of the executable and
// renames it over the original.
func rewriteEXE(exePath string, rs *winres.ResourceSet) error {
	in, err := os.Open(filepath.Clean(exePath))
	if err != nil {
		return fmt.Errorf("open executable: %w", err)
	}

	defer func() {
		_ = in.Close()
	}()

	out, err := os.CreateTemp(filepath.Dir(exePath), filepath.Base(exePath)+".res-")
	if err != nil {
		return fmt.Errorf("create temp executable: %w", err)
	}

	tempPath := out.Name()

	if err = rs.WriteToEXE(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tempPath)

		return fmt.Errorf("embed resources: %w", err)
	}

	if err = out.Close(); err != nil {
		_ = os.Remove(tempPath)

		return fmt.Errorf("close temp executable: %w", err)
	}

	info, err := os.Stat(exePath)
	if err != nil {
		_ = os.Remove(tempPath)

		return fmt.Errorf("stat executable: %w", err)
	}

	if err = os.Chmod(tempPath, info.Mode().Perm()); err != nil {
		_ = os.Remove(tempPath)

		return fmt.Errorf("chmod temp executable: %w", err)
	}

	if err = os.Rename(tempPath, exePath); err != nil {
		_ = os.Remove(tempPath)

		return fmt.Errorf("replace executable: %w", err)
	}

	return nil
}
