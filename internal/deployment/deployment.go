// Package deployment parses per-customer onboarding descriptors. The
// descriptor is a markdown file; its presence enables structured extraction
// for the customer, its absence disables it without error.
package deployment

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/christoph-ui/lakecore/internal/document"
	"github.com/christoph-ui/lakecore/internal/paths"
)

// DescriptorFilename is the well-known descriptor name inside the customer's
// staging area.
const DescriptorFilename = "deployment.md"

// LoadForCustomer resolves and parses the customer's descriptor. A missing
// file returns (nil, nil).
func LoadForCustomer(resolver *paths.Resolver, customerID string) (*document.DeploymentContext, error) {
	staging, err := resolver.Resolve(customerID, paths.KindUploadStaging)
	if err != nil {
		return nil, fmt.Errorf("resolving staging path for %s; %w", customerID, err)
	}

	ctx, err := Load(filepath.Join(staging, DescriptorFilename))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ctx.CustomerID = customerID
	return ctx, nil
}

// Load parses a descriptor file.
func Load(path string) (*document.DeploymentContext, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ctx := &document.DeploymentContext{}

	var instructions []string
	inInstructions := false

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		if isHeading(line) {
			inInstructions = strings.EqualFold(headingText(line), "Ingestion Instructions")
			continue
		}
		if inInstructions {
			instructions = append(instructions, line)
			continue
		}

		key, value, ok := parseField(line)
		if !ok {
			continue
		}
		switch strings.ToLower(key) {
		case "company name":
			ctx.CompanyName = value
		case "industry":
			ctx.Industry = value
		case "source format":
			ctx.SourceFormat = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading descriptor %s; %w", path, err)
	}

	// The instructions section is preserved verbatim, outer blank lines
	// trimmed.
	ctx.TransformationRules = strings.TrimSpace(strings.Join(instructions, "\n"))

	if ctx.CompanyName == "" {
		return nil, fmt.Errorf("descriptor %s missing required field Company Name", path)
	}
	return ctx, nil
}

func isHeading(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "#")
}

func headingText(line string) string {
	return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
}

// parseField accepts "Key: Value" with optional markdown emphasis or list
// markers around the key.
func parseField(line string) (key, value string, ok bool) {
	trimmed := strings.TrimSpace(line)
	trimmed = strings.TrimPrefix(trimmed, "- ")
	trimmed = strings.TrimPrefix(trimmed, "* ")

	idx := strings.Index(trimmed, ":")
	if idx <= 0 {
		return "", "", false
	}

	key = strings.Trim(strings.TrimSpace(trimmed[:idx]), "*_")
	value = strings.Trim(strings.TrimSpace(trimmed[idx+1:]), "*_ ")
	if key == "" || value == "" {
		return "", "", false
	}
	return key, value, true
}
