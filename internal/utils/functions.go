package utils

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

func GetRandomUserAgent() string {
	return userAgents[time.Now().UnixNano()%int64(len(userAgents))]
}

// RenewOutputPath returns the first "name-(n).ext" variant of outputPath
// that does not exist yet.
func RenewOutputPath(outputPath string) string {
	dir := filepath.Dir(outputPath)
	base := filepath.Base(outputPath)
	ext := filepath.Ext(base)
	name := base[:len(base)-len(ext)]
	index := 1
	for {
		outputPath = filepath.Join(dir, fmt.Sprintf("%s-(%d)%s", name, index, ext))
		if _, err := os.Stat(outputPath); os.IsNotExist(err) {
			return outputPath
		}
		index++
	}
}

// FileNameFromURL returns the final path segment of rawURL, or "download"
// when the path has none.
func FileNameFromURL(rawURL string) string {
	p := rawURL
	if parsed, err := url.Parse(rawURL); err == nil {
		p = parsed.Path
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	name := path.Base(p)
	if name == "" || name == "." || name == "/" {
		return "download"
	}
	return name
}

// ReadBatchFile parses a batch YAML file into jobs ordered by section name.
// Sections with an unknown operation and entries without a link are skipped
// with a warning.
func ReadBatchFile(filePath string) ([]BatchJob, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading batch file: %w", err)
	}
	var batchFile BatchFile
	if err := yaml.Unmarshal(data, &batchFile); err != nil {
		return nil, fmt.Errorf("error parsing batch file: %w", err)
	}
	sections := make([]string, 0, len(batchFile))
	for section := range batchFile {
		sections = append(sections, section)
	}
	sort.Strings(sections)

	logger := GetLogger("batch")
	var jobs []BatchJob
	for _, section := range sections {
		op := NormalizeBatchOp(section)
		if op == "" {
			logger.Warn().Str("op", "utils/batch").Msgf("Unknown operation '%s', skipping", section)
			continue
		}
		for _, entry := range batchFile[section] {
			if entry.Link == "" {
				logger.Warn().Str("op", "utils/batch").Msgf("Empty link found in %s section, skipping", section)
				continue
			}
			jobs = append(jobs, BatchJob{Op: op, BatchEntry: entry})
		}
	}
	return jobs, nil
}

func NormalizeBatchOp(section string) string {
	typeMap := map[string]string{
		"get":      "get",
		"header":   "header",
		"headers":  "header",
		"head":     "header",
		"post":     "post",
		"upload":   "upload",
		"put":      "upload",
		"download": "download",
		"dl":       "download",
		"http":     "download",
		"https":    "download",
	}
	return typeMap[strings.ToLower(strings.TrimSpace(section))]
}
