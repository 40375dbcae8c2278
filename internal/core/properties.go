package core

import (
	"os"
	"strconv"
	"strings"
)

const propertiesPrefix = "stubrunner.properties"

var envReplacer = strings.NewReplacer(".", "_", "-", "_")

// PropertyLookup reads backend properties from the options map first, then
// from the environment: git.branch is looked up as GIT_BRANCH and then as
// STUBRUNNER_PROPERTIES_GIT_BRANCH.
type PropertyLookup struct {
	Properties map[string]string
	LookupEnv  func(key string) (string, bool)
}

func NewPropertyLookup(properties map[string]string) PropertyLookup {
	return PropertyLookup{Properties: properties, LookupEnv: os.LookupEnv}
}

func (p PropertyLookup) Get(name string) string {
	if value, ok := p.Properties[name]; ok {
		return value
	}
	lookup := p.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if value, ok := lookup(envKey(name)); ok {
		return value
	}
	if strings.HasPrefix(strings.ToLower(name), "stubrunner") {
		return ""
	}
	value, _ := lookup(envKey(propertiesPrefix + "." + name))
	return value
}

func envKey(name string) string {
	return strings.ToUpper(envReplacer.Replace(name))
}

func (p PropertyLookup) GetOrDefault(name string, fallback string) string {
	if value := strings.TrimSpace(p.Get(name)); value != "" {
		return value
	}
	return fallback
}

func (p PropertyLookup) Bool(name string) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(p.Get(name)))
	return err == nil && value
}

func (p PropertyLookup) Int(name string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(p.Get(name)))
	if err != nil {
		return fallback
	}
	return value
}
