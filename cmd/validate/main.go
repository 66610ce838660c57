// Command validate checks a content tree (sections/ and rules/, per the
// file layout LoadRaw expects) before it is served to players.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <content-dir>\n", os.Args[0])
		os.Exit(1)
	}

	validator := &ContentValidator{baseDir: os.Args[1]}
	if err := validator.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed:\n%v\n", err)
		os.Exit(1)
	}

	fmt.Println("Content tree is valid!")
}

// ContentValidator checks a sections/+rules/ tree for structural problems
// that the engine can't recover from at turn time: a dangling reference, a
// rules file with no matching section, a section file named outside the
// <N>.md convention.
type ContentValidator struct {
	baseDir string
	errors  []string
}

func (v *ContentValidator) Run() error {
	sections, err := v.loadSections()
	if err != nil {
		return err
	}
	if len(sections) == 0 {
		return fmt.Errorf("no section files found under %s", filepath.Join(v.baseDir, "sections"))
	}

	rulesFiles, err := v.loadRulesFiles()
	if err != nil {
		return err
	}

	v.errors = nil
	v.validateReferences(sections)
	v.validateOrphanRulesFiles(sections, rulesFiles)

	if len(v.errors) > 0 {
		sort.Strings(v.errors)
		return fmt.Errorf("%s", strings.Join(v.errors, "\n"))
	}
	return nil
}

// loadSections reads every sections/<N>.md file and returns the set of
// section numbers found, rejecting any filename that doesn't match the
// convention LoadRaw relies on (section key == strconv.Itoa(n)+".md").
func (v *ContentValidator) loadSections() (map[int]string, error) {
	dir := filepath.Join(v.baseDir, "sections")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	sections := make(map[int]string)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		n, ok := sectionNumberFromFilename(e.Name())
		if !ok {
			v.addError(fmt.Sprintf("sections/%s: filename must be <N>.md", e.Name()))
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		if strings.TrimSpace(string(data)) == "" {
			v.addError(fmt.Sprintf("sections/%s: file is empty", e.Name()))
		}
		sections[n] = string(data)
	}
	return sections, nil
}

func (v *ContentValidator) loadRulesFiles() (map[int]bool, error) {
	dir := filepath.Join(v.baseDir, "rules")
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return map[int]bool{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	rulesFiles := make(map[int]bool)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n, ok := ruleSectionNumberFromFilename(e.Name())
		if !ok {
			v.addError(fmt.Sprintf("rules/%s: filename must be section_<N>_rule.md", e.Name()))
			continue
		}
		rulesFiles[n] = true
	}
	return rulesFiles, nil
}

// validateReferences follows every "section N" / "go to section N" cue in
// each section's text and flags references to a section with no file,
// since that would surface as a rules.error only once a player reaches it.
func (v *ContentValidator) validateReferences(sections map[int]string) {
	for n, content := range sections {
		for _, target := range referencedSections(content) {
			if _, ok := sections[target]; !ok {
				v.addError(fmt.Sprintf("sections/%d.md: references section %d, which has no file", n, target))
			}
		}
	}
}

func (v *ContentValidator) validateOrphanRulesFiles(sections map[int]string, rulesFiles map[int]bool) {
	for n := range rulesFiles {
		if _, ok := sections[n]; !ok {
			v.addError(fmt.Sprintf("rules/section_%d_rule.md: no matching sections/%d.md", n, n))
		}
	}
}

func (v *ContentValidator) addError(msg string) {
	v.errors = append(v.errors, "  - "+msg)
}

var (
	sectionFilenameRe = regexp.MustCompile(`^(\d+)\.md$`)
	rulesFilenameRe   = regexp.MustCompile(`^section_(\d+)_rule\.md$`)
	referenceRe       = regexp.MustCompile(`(?i)section\s+(\d+)`)
)

func sectionNumberFromFilename(name string) (int, bool) {
	m := sectionFilenameRe.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	return n, err == nil
}

func ruleSectionNumberFromFilename(name string) (int, bool) {
	m := rulesFilenameRe.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	return n, err == nil
}

func referencedSections(content string) []int {
	seen := make(map[int]bool)
	var out []int
	for _, m := range referenceRe.FindAllStringSubmatch(content, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
