// Package profile defines the collection catalog: which queries, event-log
// channels, and registry keys a run collects. The default catalog is compiled
// in; an optional YAML file can replace individual sections for machines with
// renamed channels or extra policy keys.
package profile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type QuerySpec struct {
	Name    string   `yaml:"name"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Output  string   `yaml:"output"`
}

type ChannelSpec struct {
	Name string `yaml:"name"`
	// Candidates are logically equivalent channel names tried in order;
	// the first one that yields a valid export wins.
	Candidates []string `yaml:"candidates"`
	Output     string   `yaml:"output"`
}

type RegistrySpec struct {
	Name   string `yaml:"name"`
	Key    string `yaml:"key"`
	Output string `yaml:"output"`
}

type ReportSpec struct {
	Source  string `yaml:"source"`
	NodeTag string `yaml:"node_tag"`
	Field   string `yaml:"field"`
	Value   string `yaml:"value"`
	RootTag string `yaml:"root_tag"`
	Output  string `yaml:"output"`
}

type Profile struct {
	Family       string         `yaml:"family"`
	Queries      []QuerySpec    `yaml:"queries"`
	Channels     []ChannelSpec  `yaml:"channels"`
	RegistryKeys []RegistrySpec `yaml:"registry_keys"`
	Report       ReportSpec     `yaml:"report"`
}

// Default is the built-in BitLocker collection catalog.
func Default() Profile {
	return Profile{
		Family: "BitLocker",
		Queries: []QuerySpec{
			{Name: "bitlocker-status", Command: "manage-bde", Args: []string{"-status"}, Output: "BitLockerStatus.txt"},
			{Name: "system-info", Command: "systeminfo", Output: "SystemInfo.txt"},
		},
		Channels: []ChannelSpec{
			{
				Name: "bitlocker-management",
				Candidates: []string{
					"Microsoft-Windows-BitLocker/BitLocker Management",
					"Microsoft-Windows-BitLocker/Operational",
				},
				Output: "BitLockerManagement.evtx",
			},
			{
				Name: "drive-preparation",
				Candidates: []string{
					"Microsoft-Windows-BitLocker-DrivePreparationTool/Operational",
					"Microsoft-Windows-BitLocker-DrivePreparationTool/Admin",
				},
				Output: "DrivePreparation.evtx",
			},
			{
				Name:       "system-events",
				Candidates: []string{"System"},
				Output:     "SystemEvents.evtx",
			},
		},
		RegistryKeys: []RegistrySpec{
			{Name: "fve-policy", Key: `HKLM\SOFTWARE\Policies\Microsoft\FVE`, Output: "FVEPolicy.reg"},
			{Name: "mdm-policy", Key: `HKLM\SOFTWARE\Microsoft\PolicyManager\current`, Output: "MDMPolicy.reg"},
		},
		Report: ReportSpec{
			Source:  "MDMDiagReport.xml",
			NodeTag: "Area",
			Field:   "PolicyAreaName",
			Value:   "BitLocker",
			RootTag: "PolicyAreas",
			Output:  "BitLockerCSP.xml",
		},
	}
}

// Load reads a YAML profile from path and overlays it on the defaults:
// sections present in the file replace the built-in ones wholesale, absent
// sections keep their defaults.
func Load(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}

	var override Profile
	if err := yaml.Unmarshal(data, &override); err != nil {
		return Profile{}, fmt.Errorf("parse profile: %w", err)
	}

	p := Default()
	if override.Family != "" {
		p.Family = override.Family
	}
	if override.Queries != nil {
		p.Queries = override.Queries
	}
	if override.Channels != nil {
		p.Channels = override.Channels
	}
	if override.RegistryKeys != nil {
		p.RegistryKeys = override.RegistryKeys
	}
	if override.Report != (ReportSpec{}) {
		p.Report = override.Report
	}

	if err := p.validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (p Profile) validate() error {
	for _, c := range p.Channels {
		if len(c.Candidates) == 0 {
			return fmt.Errorf("channel %q has no candidates", c.Name)
		}
		if c.Output == "" {
			return fmt.Errorf("channel %q has no output file", c.Name)
		}
	}
	for _, q := range p.Queries {
		if q.Command == "" {
			return fmt.Errorf("query %q has no command", q.Name)
		}
	}
	for _, r := range p.RegistryKeys {
		if r.Key == "" {
			return fmt.Errorf("registry export %q has no key", r.Name)
		}
	}
	return nil
}
