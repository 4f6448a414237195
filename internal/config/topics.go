package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// ResolveTopics returns the effective topic list. When a topics file is
// configured and present, its bullet list replaces the inline topics;
// otherwise the inline list is used as-is.
func (c *Config) ResolveTopics() ([]string, error) {
	if c.Paths.TopicsFile == "" {
		return c.Topics, nil
	}
	topics, err := LoadTopicsFile(c.Paths.TopicsFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return c.Topics, nil
		}
		return nil, err
	}
	if len(topics) == 0 {
		return c.Topics, nil
	}
	return topics, nil
}

// LoadTopicsFile parses a markdown topic list: one topic per "- " bullet
// line. Frontmatter fences, headings, and blank lines are skipped.
func LoadTopicsFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var topics []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "---") || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "- ") {
			if topic := strings.TrimSpace(line[2:]); topic != "" {
				topics = append(topics, topic)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read topics file: %w", err)
	}
	return topics, nil
}
