package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
)

// Uploader is the storage surface the archive service depends on.
// A nil uploader keeps archives local only.
type Uploader interface {
	Upload(ctx context.Context, key string, body io.Reader) error
}

// RotatingUploader is an uploader whose stored archives can be
// enumerated and removed, enabling retention-based rotation.
type RotatingUploader interface {
	Uploader
	List(ctx context.Context, prefix string) ([]types.Object, error)
	Delete(ctx context.Context, key string) error
}

// ArchiveService bundles a finished planning project folder into a
// checksummed tar.gz and optionally ships it to object storage.
type ArchiveService struct {
	uploader Uploader
	dataDir  string
	log      zerolog.Logger
}

// ArchiveMetadata describes the files inside one archive.
type ArchiveMetadata struct {
	Timestamp     time.Time      `json:"timestamp"`
	ProjectFolder string         `json:"project_folder"`
	Files         []FileMetadata `json:"files"`
}

// FileMetadata describes a single archived file.
type FileMetadata struct {
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// NewArchiveService creates an archive service rooted at dataDir.
func NewArchiveService(uploader Uploader, dataDir string, log zerolog.Logger) *ArchiveService {
	return &ArchiveService{
		uploader: uploader,
		dataDir:  dataDir,
		log:      log.With().Str("service", "archive").Logger(),
	}
}

// ArchiveProject packages <dataDir>/<projectFolder> into
// <dataDir>/archives/<projectFolder>.tar.gz with a manifest, uploading
// the result when an uploader is configured. Returns the archive path.
func (s *ArchiveService) ArchiveProject(ctx context.Context, projectFolder string) (string, error) {
	s.log.Info().Str("project", projectFolder).Msg("Archiving project")
	startTime := time.Now()

	projectDir := filepath.Join(s.dataDir, projectFolder)
	entries, err := os.ReadDir(projectDir)
	if err != nil {
		return "", fmt.Errorf("failed to read project directory: %w", err)
	}

	metadata := ArchiveMetadata{
		Timestamp:     time.Now().UTC(),
		ProjectFolder: projectFolder,
	}

	var filenames []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		path := filepath.Join(projectDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			return "", fmt.Errorf("failed to stat %s: %w", entry.Name(), err)
		}

		checksum, err := s.calculateChecksum(path)
		if err != nil {
			return "", fmt.Errorf("failed to calculate checksum for %s: %w", entry.Name(), err)
		}

		metadata.Files = append(metadata.Files, FileMetadata{
			Filename:  entry.Name(),
			SizeBytes: info.Size(),
			Checksum:  checksum,
		})
		filenames = append(filenames, entry.Name())
	}

	if len(filenames) == 0 {
		return "", fmt.Errorf("project folder %s is empty", projectFolder)
	}
	sort.Strings(filenames)

	// Manifest sits next to the PDFs inside the archive
	manifestPath := filepath.Join(projectDir, "archive-manifest.json")
	if err := s.writeMetadata(manifestPath, metadata); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	defer os.Remove(manifestPath)
	filenames = append(filenames, "archive-manifest.json")

	archiveDir := filepath.Join(s.dataDir, "archives")
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	archiveName := projectFolder + ".tar.gz"
	archivePath := filepath.Join(archiveDir, archiveName)

	if err := s.createArchive(archivePath, projectDir, filenames); err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}

	archiveInfo, err := os.Stat(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to stat archive: %w", err)
	}

	if s.uploader != nil {
		archiveFile, err := os.Open(archivePath)
		if err != nil {
			return "", fmt.Errorf("failed to open archive: %w", err)
		}
		defer archiveFile.Close()

		if err := s.uploader.Upload(ctx, archiveName, archiveFile); err != nil {
			return "", fmt.Errorf("failed to upload archive: %w", err)
		}
	}

	s.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Str("archive", archiveName).
		Int64("size_bytes", archiveInfo.Size()).
		Int("files", len(metadata.Files)).
		Msg("Project archived")

	return archivePath, nil
}

// VerifyArchive re-reads an archive and checks every file against the
// embedded manifest checksums.
func (s *ArchiveService) VerifyArchive(archivePath string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gz.Close()

	var metadata *ArchiveMetadata
	checksums := make(map[string]string)

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read archive entry: %w", err)
		}

		if header.Name == "archive-manifest.json" {
			var m ArchiveMetadata
			if err := json.NewDecoder(tr).Decode(&m); err != nil {
				return fmt.Errorf("failed to decode manifest: %w", err)
			}
			metadata = &m
			continue
		}

		hash := sha256.New()
		if _, err := io.Copy(hash, tr); err != nil {
			return fmt.Errorf("failed to hash %s: %w", header.Name, err)
		}
		checksums[header.Name] = fmt.Sprintf("sha256:%x", hash.Sum(nil))
	}

	if metadata == nil {
		return fmt.Errorf("archive has no manifest")
	}

	for _, file := range metadata.Files {
		got, ok := checksums[file.Filename]
		if !ok {
			return fmt.Errorf("file %s missing from archive", file.Filename)
		}
		if !strings.EqualFold(got, file.Checksum) {
			return fmt.Errorf("checksum mismatch for %s", file.Filename)
		}
	}

	return nil
}

// minArchivesToKeep is the floor for remote rotation: the newest
// archives survive regardless of age.
const minArchivesToKeep = 3

// RotateRemote deletes uploaded archives older than the retention
// period, always keeping the newest minArchivesToKeep. A retention of
// 0 keeps everything. Uploaders without List/Delete are left alone.
func (s *ArchiveService) RotateRemote(ctx context.Context, retentionDays int) error {
	rotator, ok := s.uploader.(RotatingUploader)
	if !ok {
		return nil
	}

	objects, err := rotator.List(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to list archives: %w", err)
	}

	type remoteArchive struct {
		key       string
		timestamp time.Time
	}

	var archives []remoteArchive
	for _, obj := range objects {
		if obj.Key == nil {
			continue
		}

		// Archive keys start with the project timestamp:
		// 20260428_143022-crypto_tracker.tar.gz
		key := *obj.Key
		if !strings.HasSuffix(key, ".tar.gz") || len(key) < len("20060102_150405") {
			continue
		}
		timestamp, err := time.Parse("20060102_150405", key[:len("20060102_150405")])
		if err != nil {
			s.log.Warn().Str("key", key).Msg("Failed to parse timestamp from archive key")
			continue
		}

		archives = append(archives, remoteArchive{key: key, timestamp: timestamp})
	}

	sort.Slice(archives, func(i, j int) bool {
		return archives[i].timestamp.After(archives[j].timestamp)
	})

	if len(archives) <= minArchivesToKeep || retentionDays <= 0 {
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	deleted := 0
	for _, archive := range archives[minArchivesToKeep:] {
		if !archive.timestamp.Before(cutoff) {
			continue
		}

		if err := rotator.Delete(ctx, archive.key); err != nil {
			s.log.Error().Err(err).Str("key", archive.key).Msg("Failed to delete old archive")
			continue
		}
		s.log.Info().Str("key", archive.key).Msg("Deleted old archive")
		deleted++
	}

	s.log.Info().
		Int("deleted", deleted).
		Int("remaining", len(archives)-deleted).
		Msg("Archive rotation completed")

	return nil
}

// calculateChecksum calculates the SHA256 checksum of a file.
func (s *ArchiveService) calculateChecksum(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

// writeMetadata writes archive metadata to a JSON file.
func (s *ArchiveService) writeMetadata(path string, metadata ArchiveMetadata) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(metadata)
}

// createArchive creates a tar.gz archive of the named files.
func (s *ArchiveService) createArchive(archivePath, sourceDir string, filenames []string) error {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer archiveFile.Close()

	gzipWriter := gzip.NewWriter(archiveFile)
	defer gzipWriter.Close()

	tarWriter := tar.NewWriter(gzipWriter)
	defer tarWriter.Close()

	for _, filename := range filenames {
		if err := s.addFileToArchive(tarWriter, filepath.Join(sourceDir, filename), filename); err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", filename, err)
		}
	}

	return nil
}

// addFileToArchive adds a single file to a tar archive.
func (s *ArchiveService) addFileToArchive(tarWriter *tar.Writer, filePath, nameInArchive string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    nameInArchive,
		Size:    info.Size(),
		Mode:    int64(info.Mode()),
		ModTime: info.ModTime(),
	}

	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}

	if _, err := io.Copy(tarWriter, file); err != nil {
		return err
	}

	return nil
}
