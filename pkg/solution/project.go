package solution

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

const testSdkPackage = "Microsoft.NET.Test.Sdk"

// Project holds the properties of a project file that matter for packing.
type Project struct {
	Name string
	Path string
	Dir  string

	// IsPackable is nil unless the project sets the property explicitly.
	IsPackable       *bool
	IsTestProject    bool
	PackageID        string
	TargetFrameworks []string
	References       []string
}

// buildPropsName is imported by MSBuild into every project below its directory.
const buildPropsName = "Directory.Build.props"

type projectXML struct {
	PropertyGroups []struct {
		Condition        string `xml:"Condition,attr"`
		IsPackable       string `xml:"IsPackable"`
		IsTestProject    string `xml:"IsTestProject"`
		PackageID        string `xml:"PackageId"`
		TargetFramework  string `xml:"TargetFramework"`
		TargetFrameworks string `xml:"TargetFrameworks"`
	} `xml:"PropertyGroup"`
	ItemGroups []struct {
		PackageReferences []struct {
			Include string `xml:"Include,attr"`
		} `xml:"PackageReference"`
	} `xml:"ItemGroup"`
}

func readProjectXML(path string) (*projectXML, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read %s", path)
	}

	doc := new(projectXML)
	if err = xml.Unmarshal(content, doc); err != nil {
		return nil, eris.Wrapf(err, "failed to parse %s", path)
	}

	return doc, nil
}

// findBuildProps returns the nearest Directory.Build.props in dir or one of its parents.
func findBuildProps(dir string) (string, error) {
	for {
		candidate := filepath.Join(dir, buildPropsName)
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, nil
		}
		if err != nil && !os.IsNotExist(err) {
			return "", eris.Wrapf(err, "failed to check %s", candidate)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// LoadProject reads the properties of the project file at path. Properties from the nearest
// Directory.Build.props are applied first.
func LoadProject(name, path string) (*Project, error) {
	doc, err := readProjectXML(path)
	if err != nil {
		return nil, err
	}

	project := &Project{
		Name: name,
		Path: path,
		Dir:  filepath.Dir(path),
	}

	propsPath, err := findBuildProps(project.Dir)
	if err != nil {
		return nil, err
	}
	if propsPath != "" {
		props, err := readProjectXML(propsPath)
		if err != nil {
			return nil, err
		}
		if err = project.applyProperties(props, propsPath); err != nil {
			return nil, err
		}
	}

	if err = project.applyProperties(doc, path); err != nil {
		return nil, err
	}

	if project.PackageID == "" {
		project.PackageID = name
	}

	return project, nil
}

// applyProperties copies the properties of doc onto p. Later groups override earlier ones like
// they do in MSBuild. Groups with a Condition are skipped since they can't be evaluated here.
func (p *Project) applyProperties(doc *projectXML, path string) error {
	for _, group := range doc.PropertyGroups {
		if strings.TrimSpace(group.Condition) != "" {
			continue
		}

		if value := strings.TrimSpace(group.IsPackable); value != "" {
			parsed, err := strconv.ParseBool(value)
			if err != nil {
				return eris.Wrapf(err, "invalid IsPackable value in %s", path)
			}
			p.IsPackable = &parsed
		}

		if value := strings.TrimSpace(group.IsTestProject); value != "" {
			parsed, err := strconv.ParseBool(value)
			if err != nil {
				return eris.Wrapf(err, "invalid IsTestProject value in %s", path)
			}
			p.IsTestProject = parsed
		}

		if value := strings.TrimSpace(group.PackageID); value != "" {
			p.PackageID = value
		}

		if value := strings.TrimSpace(group.TargetFrameworks); value != "" {
			p.TargetFrameworks = splitList(value)
		} else if value := strings.TrimSpace(group.TargetFramework); value != "" {
			p.TargetFrameworks = []string{value}
		}
	}

	for _, group := range doc.ItemGroups {
		for _, ref := range group.PackageReferences {
			if ref.Include != "" {
				p.References = append(p.References, ref.Include)
			}
		}
	}

	return nil
}

// Packable reports whether packing this project produces a package. An explicit IsPackable
// property wins, test projects are never packed.
func (p *Project) Packable() bool {
	if p.IsPackable != nil {
		return *p.IsPackable
	}

	if p.IsTestProject {
		return false
	}

	for _, ref := range p.References {
		if strings.EqualFold(ref, testSdkPackage) {
			return false
		}
	}

	return true
}

func splitList(value string) []string {
	result := []string{}
	for _, item := range strings.Split(value, ";") {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}

	return result
}
