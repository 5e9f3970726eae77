package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/cyclopcam/www"
	"github.com/julienschmidt/httprouter"
	"github.com/sightd/sightd/server/auth"
	"github.com/sightd/sightd/server/ingest"
	"github.com/sightd/sightd/server/metrics"
	"github.com/sightd/sightd/server/pipeline"
	"github.com/sightd/sightd/server/videojob"
)

func (s *Server) httpIndex(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	s.renderPage(w, "index.html", &pageData{Email: cred.Email, Flash: takeFlash(w, r)})
}

func (s *Server) httpImageUploadPage(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	s.renderPage(w, "image_upload.html", &pageData{Email: cred.Email, Flash: takeFlash(w, r)})
}

func (s *Server) httpImageUpload(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	media, err := s.ingestor.IngestRequest(r, "file", ingest.KindImage)
	if err != nil {
		metrics.UploadsRejected.WithLabelValues("ingest").Inc()
		flashAndRedirect(w, r, ingestMessage(err), "/image_upload")
		return
	}
	metrics.UploadsTotal.WithLabelValues(ingest.KindImage.String()).Inc()

	result, err := s.pipeline.RunImage(media)
	if err != nil {
		flashAndRedirect(w, r, pipelineMessage(err), "/image_upload")
		return
	}
	s.renderPage(w, "image_upload.html", &pageData{
		Email:    cred.Email,
		Summary:  result.Summary,
		MediaURL: result.MediaURL,
	})
}

func (s *Server) httpVideoUploadPage(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	s.renderPage(w, "video_upload.html", &pageData{Email: cred.Email, Flash: takeFlash(w, r)})
}

func (s *Server) httpVideoUpload(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	media, err := s.ingestor.IngestRequest(r, "file", ingest.KindVideo)
	if err != nil {
		metrics.UploadsRejected.WithLabelValues("ingest").Inc()
		flashAndRedirect(w, r, ingestMessage(err), "/video_upload")
		return
	}
	metrics.UploadsTotal.WithLabelValues(ingest.KindVideo.String()).Inc()

	job, err := s.videoJobs.Submit(cred.Email, media)
	if err != nil {
		flashAndRedirect(w, r, "Something went wrong. Please try again.", "/video_upload")
		return
	}

	if s.cfg.Video.Async {
		s.renderPage(w, "video_status.html", &pageData{Email: cred.Email, JobID: job.ID, JobState: job.State})
		return
	}

	finished, err := s.videoJobs.Wait(job.ID)
	if err != nil || finished.State != videojob.JobDone {
		flashAndRedirect(w, r, videoJobMessage(finished), "/video_upload")
		return
	}
	http.Redirect(w, r, "/video_feed", http.StatusSeeOther)
}

func (s *Server) httpVideoFeed(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	if err := s.videoJobs.StreamMJPEG(w, r); err != nil {
		if errors.Is(err, pipeline.ErrArtifactNotFound) {
			flashAndRedirect(w, r, "No processed video available yet.", "/video_upload")
			return
		}
		s.Log.Errorf("Video feed failed: %v", err)
		flashAndRedirect(w, r, "Something went wrong. Please try again.", "/video_upload")
	}
}

func (s *Server) httpVideoStatus(w http.ResponseWriter, r *http.Request, params httprouter.Params, cred *auth.Credentials) {
	jobID := www.ParseID(params.ByName("id"))
	if jobID == 0 {
		www.PanicBadRequestf("Invalid job ID")
	}
	job, err := s.videoJobs.Job(jobID)
	if err != nil {
		www.SendError(w, "Job not found", http.StatusNotFound)
		return
	}
	type response struct {
		ID    int64  `json:"id"`
		State string `json:"state"`
		Error string `json:"error,omitempty"`
	}
	www.SendJSON(w, response{ID: job.ID, State: job.State, Error: job.Error})
}

func ingestMessage(err error) string {
	if errors.Is(err, ingest.ErrNoFile) {
		return "No file selected"
	}
	if errors.Is(err, ingest.ErrUnsupportedExtension) {
		return err.Error()
	}
	return "Upload failed. Please try again."
}

func pipelineMessage(err error) string {
	if errors.Is(err, pipeline.ErrDecodeFailed) {
		return pipeline.ErrDecodeFailed.Error()
	}
	return "Something went wrong. Please try again."
}

func videoJobMessage(job *videojob.VideoJob) string {
	if job != nil && strings.Contains(job.Error, videojob.ErrVideoOpenFailed.Error()) {
		return videojob.ErrVideoOpenFailed.Error()
	}
	return "Video processing failed. Please try again."
}
