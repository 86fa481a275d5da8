// Package hub can be used to download and cache files from HuggingFace Hub, which may
// be tokenizers, model configurations, or datasets.
//
// Example:
//
//	repo := hub.New("bert-base-cased").WithAuth(hfAuthToken)
//	tokenizerConfig, err := repo.DownloadFile("tokenizer_config.json")
//	if err != nil {
//		panic(err)
//	}
//
// Files are cached under DefaultCacheDir (or the one given with Repo.WithCacheDir), and
// concurrent processes downloading the same file coordinate through lock files.
package hub

import (
	"context"
	"encoding/json"
	"iter"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gomlx/hftasks/internal/downloader"
	"github.com/gomlx/hftasks/internal/files"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DefaultEndpoint is HuggingFace Hub's URL.
const DefaultEndpoint = "https://huggingface.co"

// DefaultRevision is the branch used if none is specified.
const DefaultRevision = "main"

// DefaultDirCreationPerm is used when creating cache directories.
var DefaultDirCreationPerm = os.FileMode(0755)

// RepoType of a HuggingFace repository.
type RepoType string

const (
	RepoTypeModel   RepoType = "model"
	RepoTypeDataset RepoType = "dataset"
)

// Repo references a HuggingFace repository, from where files can be downloaded and cached.
//
// Create it with New, and optionally configure it with the With* methods.
// It is not safe for concurrent configuration, but once configured DownloadFile can be called
// concurrently.
type Repo struct {
	// ID of the repository, e.g. "google-bert/bert-base-cased".
	ID string

	// MaxParallelDownload limits the number of simultaneous downloads for this Repo.
	MaxParallelDownload int

	repoType  RepoType
	revision  string
	authToken string
	cacheDir  string
	endpoint  string

	info            *RepoInfo
	mu              sync.Mutex
	downloadManager *downloader.Manager
}

// RepoInfo holds the information returned by the Hub API about a repository revision.
type RepoInfo struct {
	ID       string    `json:"id"`
	SHA      string    `json:"sha"`
	Siblings []Sibling `json:"siblings"`
}

// Sibling is a file in the repository.
type Sibling struct {
	Name string `json:"rfilename"`
}

// DefaultCacheDir returns $HF_HOME/hub if HF_HOME is set, or ~/.cache/huggingface/hub otherwise.
func DefaultCacheDir() string {
	if hfHome := os.Getenv("HF_HOME"); hfHome != "" {
		return filepath.Join(files.ReplaceTildeInDir(hfHome), "hub")
	}
	return files.ReplaceTildeInDir("~/.cache/huggingface/hub")
}

// New creates a reference to the HuggingFace model repository with the given id.
// Nothing is downloaded until requested.
func New(id string) *Repo {
	return &Repo{
		ID:                  id,
		MaxParallelDownload: downloader.DefaultMaxParallel,
		repoType:            RepoTypeModel,
		revision:            DefaultRevision,
		cacheDir:            DefaultCacheDir(),
		endpoint:            DefaultEndpoint,
	}
}

// WithAuth sets the HuggingFace token used to access private or gated repositories.
// It returns itself, so calls can be cascaded.
func (r *Repo) WithAuth(authToken string) *Repo {
	r.authToken = authToken
	r.downloadManager = nil
	return r
}

// WithCacheDir sets the directory where files are cached.
// It returns itself, so calls can be cascaded.
func (r *Repo) WithCacheDir(cacheDir string) *Repo {
	r.cacheDir = files.ReplaceTildeInDir(cacheDir)
	return r
}

// WithRevision sets the revision (branch, tag or commit) to use. Default is "main".
// It returns itself, so calls can be cascaded.
func (r *Repo) WithRevision(revision string) *Repo {
	r.revision = revision
	r.info = nil
	return r
}

// WithType sets the repository type. Default is RepoTypeModel.
// It returns itself, so calls can be cascaded.
func (r *Repo) WithType(repoType RepoType) *Repo {
	r.repoType = repoType
	r.info = nil
	return r
}

// WithEndpoint changes the Hub URL, e.g. to point to a mirror.
// It returns itself, so calls can be cascaded.
func (r *Repo) WithEndpoint(endpoint string) *Repo {
	r.endpoint = strings.TrimSuffix(endpoint, "/")
	r.info = nil
	return r
}

// repoCacheDir is where this repo's revision files are cached.
func (r *Repo) repoCacheDir() string {
	flatID := strings.ReplaceAll(r.ID, "/", "--")
	return filepath.Join(r.cacheDir, string(r.repoType)+"s--"+flatID, r.revision)
}

func (r *Repo) infoURL() string {
	return r.endpoint + path.Join("/api", string(r.repoType)+"s", r.ID, "revision", url.PathEscape(r.revision))
}

func (r *Repo) fileURL(fileName string) string {
	prefix := "/"
	if r.repoType != RepoTypeModel {
		prefix = "/" + string(r.repoType) + "s/"
	}
	return r.endpoint + prefix + path.Join(r.ID, "resolve", url.PathEscape(r.revision), fileName)
}

// DownloadInfo fetches the repository information (the list of files) from the Hub.
//
// If the information was already downloaded (and cached to disk) and forceDownload is false,
// it uses the cached version.
func (r *Repo) DownloadInfo(forceDownload bool) error {
	return r.DownloadInfoContext(context.Background(), forceDownload)
}

// DownloadInfoContext is like DownloadInfo, but allows cancellation through ctx.
func (r *Repo) DownloadInfoContext(ctx context.Context, forceDownload bool) error {
	if r.info != nil && !forceDownload {
		return nil
	}
	infoPath := filepath.Join(r.repoCacheDir(), ".info.json")
	if err := r.lockedDownload(ctx, r.infoURL(), infoPath, forceDownload, nil); err != nil {
		return errors.WithMessagef(err, "while fetching info for repo %q", r.ID)
	}
	content, err := os.ReadFile(infoPath)
	if err != nil {
		return errors.Wrapf(err, "reading repo info %q", infoPath)
	}
	info := &RepoInfo{}
	if err := json.Unmarshal(content, info); err != nil {
		return errors.Wrapf(err, "parsing repo info for %q", r.ID)
	}
	r.info = info
	klog.V(1).Infof("hub: repo %q (revision %s) has %d files", r.ID, r.revision, len(info.Siblings))
	return nil
}

// Info returns the repository information, downloading it if needed.
func (r *Repo) Info() (*RepoInfo, error) {
	if err := r.DownloadInfo(false); err != nil {
		return nil, err
	}
	return r.info, nil
}

// IterFileNames iterates over the names of the files in the repository.
// It downloads the repository info if not yet available, and yields the error if that fails.
func (r *Repo) IterFileNames() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		info, err := r.Info()
		if err != nil {
			yield("", err)
			return
		}
		for _, sibling := range info.Siblings {
			if !yield(sibling.Name, nil) {
				return
			}
		}
	}
}

// HasFile returns whether the repository has a file with the given name.
// It returns false if the repository information can't be fetched.
func (r *Repo) HasFile(fileName string) bool {
	for name, err := range r.IterFileNames() {
		if err != nil {
			klog.Warningf("hub: can't list files of %q: %v", r.ID, err)
			return false
		}
		if name == fileName {
			return true
		}
	}
	return false
}

// DownloadFile downloads (if not yet cached) the file and returns its local path.
func (r *Repo) DownloadFile(fileName string) (string, error) {
	return r.DownloadFileContext(context.Background(), fileName)
}

// DownloadFileContext is like DownloadFile, but allows cancellation through ctx.
func (r *Repo) DownloadFileContext(ctx context.Context, fileName string) (string, error) {
	if fileName == "" || path.IsAbs(fileName) || strings.Contains(fileName, "..") {
		return "", errors.Errorf("invalid file name %q for repo %q", fileName, r.ID)
	}
	localPath := filepath.Join(r.repoCacheDir(), filepath.FromSlash(fileName))
	if err := r.lockedDownload(ctx, r.fileURL(fileName), localPath, false, nil); err != nil {
		return "", err
	}
	return localPath, nil
}
