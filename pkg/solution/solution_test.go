package solution

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSolution = `
Microsoft Visual Studio Solution File, Format Version 12.00
# Visual Studio Version 17
Project("{2150E333-8FDC-42A3-9474-1A3956D46DE8}") = "src", "src", "{11111111-1111-1111-1111-111111111111}"
EndProject
Project("{9A19103F-16F7-4668-BE54-9A1E7A4F7556}") = "Lib", "src\Lib\Lib.csproj", "{22222222-2222-2222-2222-222222222222}"
EndProject
Project("{9A19103F-16F7-4668-BE54-9A1E7A4F7556}") = "Lib.Tests", "tests\Lib.Tests\Lib.Tests.csproj", "{33333333-3333-3333-3333-333333333333}"
EndProject
Project("{9A19103F-16F7-4668-BE54-9A1E7A4F7556}") = "Internal", "src\Internal\Internal.csproj", "{44444444-4444-4444-4444-444444444444}"
EndProject
Project("{9A19103F-16F7-4668-BE54-9A1E7A4F7556}") = "Samples", "samples\Samples.csproj", "{55555555-5555-5555-5555-555555555555}"
EndProject
Global
EndGlobal
`

var testProjects = map[string]string{
	"src/Lib/Lib.csproj": `<Project Sdk="Microsoft.NET.Sdk">
  <PropertyGroup>
    <TargetFrameworks>net6.0;netstandard2.0</TargetFrameworks>
    <PackageId>Example.Lib</PackageId>
  </PropertyGroup>
</Project>`,
	"tests/Lib.Tests/Lib.Tests.csproj": `<Project Sdk="Microsoft.NET.Sdk">
  <PropertyGroup>
    <TargetFramework>net6.0</TargetFramework>
  </PropertyGroup>
  <ItemGroup>
    <PackageReference Include="Microsoft.NET.Test.Sdk" Version="17.0.0" />
    <PackageReference Include="xunit" Version="2.4.1" />
  </ItemGroup>
</Project>`,
	"src/Internal/Internal.csproj": `<Project Sdk="Microsoft.NET.Sdk">
  <PropertyGroup>
    <TargetFramework>net6.0</TargetFramework>
    <IsPackable>false</IsPackable>
  </PropertyGroup>
</Project>`,
	"samples/Samples.csproj": `<Project Sdk="Microsoft.NET.Sdk">
  <PropertyGroup>
    <IsPackable>false</IsPackable>
  </PropertyGroup>
  <PropertyGroup Condition="'$(Configuration)' == 'Release'">
    <IsPackable>true</IsPackable>
  </PropertyGroup>
</Project>`,
}

func writeSolution(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	slnPath := filepath.Join(root, "Example.sln")
	require.NoError(t, os.WriteFile(slnPath, []byte(testSolution), 0o644))

	for name, content := range testProjects {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	return root
}

func TestLoad(t *testing.T) {
	root := writeSolution(t)

	path, err := Find(root)
	require.NoError(t, err)

	sln, err := Load(path)
	require.NoError(t, err)
	require.Len(t, sln.Projects, 4)

	lib, ok := sln.Project("Lib")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "src", "Lib", "Lib.csproj"), lib.Path)
	assert.Equal(t, "Example.Lib", lib.PackageID)
	assert.Equal(t, []string{"net6.0", "netstandard2.0"}, lib.TargetFrameworks)
	assert.Nil(t, lib.IsPackable)

	tests, ok := sln.Project("Lib.Tests")
	require.True(t, ok)
	assert.Equal(t, "Lib.Tests", tests.PackageID)
	assert.Contains(t, tests.References, "xunit")

	_, ok = sln.Project("src")
	assert.False(t, ok, "solution folders are not projects")
}

func TestPackable(t *testing.T) {
	root := writeSolution(t)

	sln, err := Load(filepath.Join(root, "Example.sln"))
	require.NoError(t, err)

	names := []string{}
	for _, project := range sln.Packable() {
		names = append(names, project.Name)
	}

	// the last property group wins for Samples
	assert.Equal(t, []string{"Lib", "Samples"}, names)
}

func TestProjectPackable(t *testing.T) {
	yes := true
	no := false

	tests := []struct {
		name     string
		project  Project
		expected bool
	}{
		{name: "plain library", project: Project{}, expected: true},
		{name: "explicitly disabled", project: Project{IsPackable: &no}, expected: false},
		{name: "test project", project: Project{IsTestProject: true}, expected: false},
		{name: "test sdk reference", project: Project{References: []string{"microsoft.net.test.sdk"}}, expected: false},
		{name: "explicit value wins over test flag", project: Project{IsPackable: &yes, IsTestProject: true}, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.project.Packable())
		})
	}
}

func TestFind(t *testing.T) {
	root := t.TempDir()

	_, err := Find(root)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "A.sln"), []byte{}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "B.sln"), []byte{}, 0o644))

	_, err = Find(root)
	assert.Error(t, err)
}

func TestLoadProjectBuildProps(t *testing.T) {
	tests := []struct {
		name     string
		props    string
		project  string
		packable bool
	}{
		{
			name:     "props disable packing",
			props:    `<Project><PropertyGroup><IsPackable>false</IsPackable></PropertyGroup></Project>`,
			project:  `<Project Sdk="Microsoft.NET.Sdk"></Project>`,
			packable: false,
		},
		{
			name:     "project overrides props",
			props:    `<Project><PropertyGroup><IsPackable>false</IsPackable></PropertyGroup></Project>`,
			project:  `<Project Sdk="Microsoft.NET.Sdk"><PropertyGroup><IsPackable>true</IsPackable></PropertyGroup></Project>`,
			packable: true,
		},
		{
			name:     "conditional groups are skipped",
			props:    `<Project><PropertyGroup Condition="'$(Configuration)' == 'Debug'"><IsPackable>false</IsPackable></PropertyGroup></Project>`,
			project:  `<Project Sdk="Microsoft.NET.Sdk"></Project>`,
			packable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(root, "Directory.Build.props"), []byte(tt.props), 0o644))

			path := filepath.Join(root, "src", "Lib", "Lib.csproj")
			require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
			require.NoError(t, os.WriteFile(path, []byte(tt.project), 0o644))

			project, err := LoadProject("Lib", path)
			require.NoError(t, err)
			assert.Equal(t, tt.packable, project.Packable())
		})
	}
}
