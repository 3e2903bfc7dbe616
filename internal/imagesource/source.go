package imagesource

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"plate-reader/internal/domain/reader"
)

// List returns the regular files in dir, sorted by name.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", reader.ErrNoImages, dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", reader.ErrNoImages, dir)
	}

	sort.Strings(names)
	return names, nil
}

// PrintMenu writes the numbered image list.
func PrintMenu(w io.Writer, names []string) {
	fmt.Fprintln(w, "Available images:")
	for i, name := range names {
		fmt.Fprintf(w, "%d. %s\n", i+1, name)
	}
}

// Choose prompts for a 1-based selection and returns the chosen name.
func Choose(in io.Reader, out io.Writer, names []string) (string, error) {
	fmt.Fprint(out, "Choose image number: ")

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("%w: no selection read", reader.ErrInvalidChoice)
	}

	choice, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return "", fmt.Errorf("%w: %q is not a number", reader.ErrInvalidChoice, strings.TrimSpace(line))
	}
	if choice < 1 || choice > len(names) {
		return "", fmt.Errorf("%w: %d is outside 1..%d", reader.ErrInvalidChoice, choice, len(names))
	}

	return names[choice-1], nil
}

// Path joins the images directory with a listed name.
func Path(dir, name string) string {
	return filepath.Join(dir, name)
}
