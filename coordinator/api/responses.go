package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/absmach/fedmodel/coordinator"
	"github.com/absmach/fedmodel/pkg/artifact"
	"github.com/absmach/fedmodel/pkg/fl"
	"github.com/absmach/supermq"
)

const (
	versionHeader = "Model-Version"
	hashHeader    = "Model-Hash"
	sizeHeader    = "Model-Size"
)

var (
	_ supermq.Response = (*submitRes)(nil)
	_ supermq.Response = (*roundRes)(nil)
	_ supermq.Response = (*listRoundsRes)(nil)
	_ supermq.Response = (*manifestRes)(nil)
	_ supermq.Response = (*artifactRes)(nil)
	_ supermq.Response = (*listArtifactsRes)(nil)
	_ supermq.Response = (*statusRes)(nil)
)

type submitRes struct {
	coordinator.SubmitResult
}

func (res submitRes) Code() int {
	return http.StatusAccepted
}

func (res submitRes) Headers() map[string]string {
	if res.RoundID != "" {
		return map[string]string{
			"Location": "/rounds/" + res.RoundID,
		}
	}

	return map[string]string{}
}

func (res submitRes) Empty() bool {
	return false
}

type roundRes struct {
	fl.Round
	created bool
}

func (res roundRes) Code() int {
	if res.created {
		return http.StatusCreated
	}

	return http.StatusOK
}

func (res roundRes) Headers() map[string]string {
	if res.created {
		return map[string]string{
			"Location": "/rounds/" + res.ID,
		}
	}

	return map[string]string{}
}

func (res roundRes) Empty() bool {
	return false
}

type listRoundsRes struct {
	fl.RoundPage
}

func (res listRoundsRes) Code() int {
	return http.StatusOK
}

func (res listRoundsRes) Headers() map[string]string {
	return map[string]string{}
}

func (res listRoundsRes) Empty() bool {
	return false
}

type manifestRes struct {
	artifact.Manifest
	DownloadURL string    `json:"download_url"`
	ServerTime  time.Time `json:"server_time"`
	created     bool
	notModified bool
}

func (res manifestRes) Code() int {
	switch {
	case res.created:
		return http.StatusCreated
	case res.notModified:
		return http.StatusNotModified
	default:
		return http.StatusOK
	}
}

func (res manifestRes) Headers() map[string]string {
	return map[string]string{
		"ETag":          etag(res.ContentHash),
		"Cache-Control": "no-cache",
	}
}

func (res manifestRes) Empty() bool {
	return res.notModified
}

// artifactRes carries raw model bytes and is written by
// encodeArtifactResponse rather than as JSON.
type artifactRes struct {
	meta        artifact.Artifact
	data        []byte
	notModified bool
}

func (res artifactRes) Code() int {
	if res.notModified {
		return http.StatusNotModified
	}

	return http.StatusOK
}

func (res artifactRes) Headers() map[string]string {
	ext := "fp16"
	if res.meta.Format == artifact.Training {
		ext = "ckpt"
	}

	return map[string]string{
		versionHeader:         strconv.FormatUint(res.meta.Version, 10),
		hashHeader:            res.meta.ContentHash,
		sizeHeader:            strconv.FormatInt(res.meta.SizeBytes, 10),
		"Last-Modified":       res.meta.CreatedAt.UTC().Format(http.TimeFormat),
		"ETag":                etag(res.meta.ContentHash),
		"Content-Disposition": fmt.Sprintf(`attachment; filename="global-model-v%d.%s"`, res.meta.Version, ext),
	}
}

func (res artifactRes) Empty() bool {
	return res.notModified
}

type listArtifactsRes struct {
	coordinator.ArtifactPage
}

func (res listArtifactsRes) Code() int {
	return http.StatusOK
}

func (res listArtifactsRes) Headers() map[string]string {
	return map[string]string{}
}

func (res listArtifactsRes) Empty() bool {
	return false
}

type statusRes struct {
	coordinator.Status
}

func (res statusRes) Code() int {
	return http.StatusOK
}

func (res statusRes) Headers() map[string]string {
	return map[string]string{}
}

func (res statusRes) Empty() bool {
	return false
}
