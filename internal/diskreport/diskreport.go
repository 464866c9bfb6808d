// Package diskreport aggregates host-level storage usage for the admin and
// superadmin views: fixed local mounts with their capacity, and per-user
// consumption under a well-known data directory on each mount. Everything is
// computed by scanning the filesystem at request time; no index is kept.
package diskreport

import (
	"bufio"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cloudvault/backend/internal/filestore"
	"github.com/cloudvault/backend/internal/models"
	"golang.org/x/sys/unix"
	"gorm.io/gorm"
)

var ErrUnknownMount = errors.New("unknown mount")

type Drive struct {
	Name        string  `json:"name"`
	Device      string  `json:"device"`
	FSType      string  `json:"fsType"`
	TotalSize   int64   `json:"totalSize"`
	FreeSpace   int64   `json:"freeSpace"`
	UsedSpace   int64   `json:"usedSpace"`
	TotalSizeGB float64 `json:"totalSizeGB"`
	FreeSpaceGB float64 `json:"freeSpaceGB"`
	UsedSpaceGB float64 `json:"usedSpaceGB"`
}

type UserUsage struct {
	UserID      string  `json:"userId"`
	UserName    string  `json:"userName"`
	UserEmail   string  `json:"userEmail"`
	FileCount   int     `json:"fileCount"`
	TotalSize   int64   `json:"totalSize"`
	TotalSizeGB float64 `json:"totalSizeGB"`
	TotalSizeMB float64 `json:"totalSizeMB"`
}

type ReportedFile struct {
	FileName     string    `json:"fileName"`
	OriginalName string    `json:"originalFileName,omitempty"`
	RelativePath string    `json:"relativePath"`
	Size         int64     `json:"size"`
	SizeGB       float64   `json:"sizeGB"`
	SizeMB       float64   `json:"sizeMB"`
	LastModified time.Time `json:"lastModified"`
	FullPath     string    `json:"fullPath,omitempty"`
}

type Reporter struct {
	DB *gorm.DB
	// Subdir is the well-known directory looked up under each mount.
	Subdir string
	// ProcMounts is /proc/mounts outside of tests.
	ProcMounts string
}

func NewReporter(db *gorm.DB, subdir string) *Reporter {
	return &Reporter{DB: db, Subdir: subdir, ProcMounts: "/proc/mounts"}
}

// Drives enumerates fixed, ready local filesystems: mounts whose device lives
// under /dev. Virtual and network filesystems are excluded.
func (r *Reporter) Drives() ([]Drive, error) {
	mounts, err := r.fixedMounts()
	if err != nil {
		return nil, err
	}

	drives := make([]Drive, 0, len(mounts))
	for _, m := range mounts {
		var stat unix.Statfs_t
		if err := unix.Statfs(m.mountpoint, &stat); err != nil {
			// Not ready (stale or inaccessible); skip rather than fail the
			// whole report.
			continue
		}

		total := int64(stat.Blocks) * stat.Bsize
		free := int64(stat.Bavail) * stat.Bsize
		used := total - free

		drives = append(drives, Drive{
			Name:        m.mountpoint,
			Device:      m.device,
			FSType:      m.fstype,
			TotalSize:   total,
			FreeSpace:   free,
			UsedSpace:   used,
			TotalSizeGB: roundGB(total),
			FreeSpaceGB: roundGB(free),
			UsedSpaceGB: roundGB(used),
		})
	}

	return drives, nil
}

// ValidateMount confirms the given mountpoint is one of the enumerated
// drives, refusing report scans over arbitrary paths.
func (r *Reporter) ValidateMount(mount string) error {
	drives, err := r.Drives()
	if err != nil {
		return err
	}
	for _, d := range drives {
		if d.Name == mount {
			return nil
		}
	}
	return ErrUnknownMount
}

// UserUsageOnMount reports, per non-deleted user, the file count and
// aggregate size found under <mount>/<subdir>/<sanitized-id>. A user without
// a folder simply does not appear; a missing base path yields an empty list.
func (r *Reporter) UserUsageOnMount(ctx context.Context, mount string) ([]UserUsage, error) {
	base := filepath.Join(mount, r.Subdir)
	if _, err := os.Stat(base); err != nil {
		if os.IsNotExist(err) {
			return []UserUsage{}, nil
		}
		return nil, err
	}

	var users []models.User
	if err := r.DB.WithContext(ctx).Find(&users).Error; err != nil {
		return nil, err
	}

	usages := make([]UserUsage, 0, len(users))
	for _, user := range users {
		userDir := filepath.Join(base, filestore.SanitizeID(user.ID.String()))
		if _, err := os.Stat(userDir); err != nil {
			continue
		}

		entries, err := filestore.ListRecursive(userDir)
		if err != nil {
			return nil, err
		}

		var total int64
		for _, e := range entries {
			total += e.Size
		}

		usages = append(usages, UserUsage{
			UserID:      user.ID.String(),
			UserName:    user.Name,
			UserEmail:   user.Email,
			FileCount:   len(entries),
			TotalSize:   total,
			TotalSizeGB: roundGB(total),
			TotalSizeMB: roundMB(total),
		})
	}

	return usages, nil
}

// UserFilesOnMount lists one user's files under the mount recursively,
// largest first. With mask set, names are redacted and full paths withheld.
func (r *Reporter) UserFilesOnMount(mount, userID string, mask bool) ([]ReportedFile, error) {
	userDir := filepath.Join(mount, r.Subdir, filestore.SanitizeID(userID))

	entries, err := filestore.ListRecursive(userDir)
	if err != nil {
		return nil, err
	}

	files := make([]ReportedFile, 0, len(entries))
	for _, e := range entries {
		rf := ReportedFile{
			FileName:     e.Name,
			RelativePath: e.RelPath,
			Size:         e.Size,
			SizeGB:       roundGB4(e.Size),
			SizeMB:       roundMB(e.Size),
			LastModified: e.LastModified,
		}
		if mask {
			rf.FileName = filestore.MaskName(e.Name)
			rf.RelativePath = maskRelPath(e.RelPath, rf.FileName)
		} else {
			rf.OriginalName = e.Name
			rf.FullPath = filepath.Join(userDir, e.RelPath)
		}
		files = append(files, rf)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Size > files[j].Size })

	return files, nil
}

// OpenFile opens one user's file on a mount for the superadmin raw download.
// The file name is sanitized, so the read cannot leave the user's directory.
func (r *Reporter) OpenFile(mount, userID, name string) (*os.File, os.FileInfo, error) {
	fileName := filestore.SanitizeFileName(name)
	if fileName == "" {
		return nil, nil, filestore.ErrNotFound
	}

	path := filepath.Join(mount, r.Subdir, filestore.SanitizeID(userID), fileName)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, filestore.ErrNotFound
		}
		return nil, nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, nil, filestore.ErrNotFound
	}

	return f, info, nil
}

type mount struct {
	device     string
	mountpoint string
	fstype     string
}

func (r *Reporter) fixedMounts() ([]mount, error) {
	f, err := os.Open(r.ProcMounts)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var mounts []mount
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		if !strings.HasPrefix(fields[0], "/dev/") {
			continue
		}
		mounts = append(mounts, mount{
			device:     fields[0],
			mountpoint: unescapeMountPath(fields[1]),
			fstype:     fields[2],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return mounts, nil
}

// unescapeMountPath decodes the octal escapes /proc/mounts uses for spaces
// and the like (e.g. \040).
func unescapeMountPath(path string) string {
	replacer := strings.NewReplacer(`\040`, " ", `\011`, "\t", `\012`, "\n", `\134`, `\`)
	return replacer.Replace(path)
}

func maskRelPath(relPath, maskedName string) string {
	dir := filepath.Dir(relPath)
	if dir == "." {
		return maskedName
	}
	return filepath.Join(dir, maskedName)
}

func roundGB(bytes int64) float64 {
	return math.Round(float64(bytes)/(1024*1024*1024)*100) / 100
}

func roundGB4(bytes int64) float64 {
	return math.Round(float64(bytes)/(1024*1024*1024)*10000) / 10000
}

func roundMB(bytes int64) float64 {
	return math.Round(float64(bytes)/(1024*1024)*100) / 100
}
