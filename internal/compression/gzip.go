package compression

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
)

func Gzip(dst io.Writer, src io.Reader) (int64, error) {
	gz := gzip.NewWriter(dst)

	n, err := io.Copy(gz, src)
	if err != nil {
		_ = gz.Close()
		return n, err
	}

	// gzip writes the footer on Close.
	if err := gz.Close(); err != nil {
		return n, err
	}

	return n, nil
}

// GzipFile compresses path into path+".gz" and removes the original on
// success. It returns the new path.
func GzipFile(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open dump: %w", err)
	}
	defer src.Close()

	outPath := path + ".gz"
	tmpPath := outPath + ".tmp"
	dst, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("create gzip file: %w", err)
	}

	if _, err := Gzip(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("gzip: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", err
	}

	_ = src.Close()
	if err := os.Remove(path); err != nil {
		return "", fmt.Errorf("remove uncompressed dump: %w", err)
	}
	return outPath, nil
}
