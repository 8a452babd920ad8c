package stage

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/oauth2"

	"github.com/qs3c/clone_gen_server/config"
	"github.com/qs3c/clone_gen_server/internal/model"
	"github.com/qs3c/clone_gen_server/internal/pkg/oss"
)

// HTTPDeployer 部署协作者
// 把产物目录打成 zip，推给部署平台 API，可选同步一份到 OSS
type HTTPDeployer struct {
	baseURL string
	client  *http.Client
	oss     *oss.Client // 为 nil 时跳过 OSS 归档
}

func NewHTTPDeployer(cfg *config.DeployConfig, ossClient *oss.Client) *HTTPDeployer {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	client := &http.Client{Timeout: timeout}
	if cfg.APIToken != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.APIToken})
		client = oauth2.NewClient(context.Background(), ts)
		client.Timeout = timeout
	}

	return &HTTPDeployer{
		baseURL: cfg.APIBaseURL,
		client:  client,
		oss:     ossClient,
	}
}

// Deploy 打包上传并等待部署平台返回访问地址
func (d *HTTPDeployer) Deploy(ctx context.Context, outputDir, slug string) (*model.Deployment, error) {
	bundle, err := zipDir(outputDir)
	if err != nil {
		return nil, Fail("deploy", "产物打包失败", err)
	}

	url := fmt.Sprintf("%s/apps/%s/deployments", d.baseURL, slug)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bundle))
	if err != nil {
		return nil, Fail("deploy", "部署请求构造失败", err)
	}
	req.Header.Set("Content-Type", "application/zip")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, Fail("deploy", "部署平台调用失败", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, Fail("deploy", "部署平台返回异常",
			fmt.Errorf("status %d: %s", resp.StatusCode, body))
	}

	var result struct {
		AppURL   string `json:"app_url"`
		AdminURL string `json:"admin_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, Fail("deploy", "部署结果格式异常", err)
	}
	if result.AppURL == "" {
		return nil, Fail("deploy", "部署平台未返回访问地址", nil)
	}

	deployment := &model.Deployment{
		AppURL:     result.AppURL,
		AdminURL:   result.AdminURL,
		DeployedAt: time.Now(),
	}

	// OSS 归档失败不影响部署结果
	if d.oss != nil {
		if bundleURL, err := d.oss.UploadBundle(slug, bundle); err == nil {
			deployment.BundleURL = bundleURL
		}
	}

	return deployment, nil
}

// Teardown 下线应用，删除任务时调用
func (d *HTTPDeployer) Teardown(ctx context.Context, slug string) error {
	url := fmt.Sprintf("%s/apps/%s", d.baseURL, slug)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// 应用本就不存在视为下线成功
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent &&
		resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("teardown %s: status %d", slug, resp.StatusCode)
	}
	return nil
}

// zipDir 把目录打成内存 zip
func zipDir(root string) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "node_modules" || d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		f, err := w.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}

		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()

		_, err = io.Copy(f, src)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
