package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"

	"github.com/donmikel/formproxy/applications/server"
	"github.com/donmikel/formproxy/applications/server/config"
	"github.com/donmikel/formproxy/applications/server/domain"
)

// maxParamsBytes bounds request bodies; pictures arrive base64 encoded.
const maxParamsBytes = 32 << 20

type getFormParams struct {
	FormHash string `json:"form_hash"`
}

type submitFormParams struct {
	FormData          []domain.FormField `json:"form_data"`
	FormSubmissionURL string             `json:"form_submission_url"`
}

type postPictureParams struct {
	Data    string `json:"data"`
	Ts      int64  `json:"ts"`
	FormURL string `json:"formUrl"`
}

func NewRouter(svc server.FormService, conf config.Api, logger log.Logger) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/sys/info/ping", PingHandler()).Methods(http.MethodGet)

	cloud := r.PathPrefix("/cloud").Subrouter()
	if conf.RateLimit > 0 {
		cloud.Use(RateLimitMiddleware(conf.RateLimit))
	}
	cloud.HandleFunc("/getForm", GetFormHandler(svc, logger)).Methods(http.MethodPost)
	cloud.HandleFunc("/getForms", GetFormsHandler(svc, logger)).Methods(http.MethodPost)
	cloud.HandleFunc("/submitForm", SubmitFormHandler(svc, logger)).Methods(http.MethodPost)
	cloud.HandleFunc("/postPicture", PostPictureHandler(svc, logger)).Methods(http.MethodPost)
	cloud.HandleFunc("/getList", GetListHandler(svc, logger)).Methods(http.MethodPost)
	cloud.HandleFunc("/deletePictures", DeletePicturesHandler(svc, logger)).Methods(http.MethodPost)

	return r
}

func PingHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`"OK"`))
	}
}

func GetFormHandler(svc server.FormService, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var params getFormParams
		if err := decodeParams(w, r, &params); err != nil {
			level.Error(logger).Log("msg", "getForm params error", "err", err)
			writeErr(w, err, paramsErrStatus(err))
			return
		}

		res, err := svc.GetForm(r.Context(), params.FormHash)
		writeResult(w, logger, "getForm", res, err)
	}
}

func GetFormsHandler(svc server.FormService, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.GetForms(r.Context())
		writeResult(w, logger, "getForms", res, err)
	}
}

func SubmitFormHandler(svc server.FormService, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var params submitFormParams
		if err := decodeParams(w, r, &params); err != nil {
			level.Error(logger).Log("msg", "submitForm params error", "err", err)
			writeErr(w, err, paramsErrStatus(err))
			return
		}

		res, err := svc.SubmitForm(r.Context(), params.FormData, params.FormSubmissionURL)
		writeResult(w, logger, "submitForm", res, err)
	}
}

func PostPictureHandler(svc server.FormService, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var params postPictureParams
		if err := decodeParams(w, r, &params); err != nil {
			level.Error(logger).Log("msg", "postPicture params error", "err", err)
			writeErr(w, err, paramsErrStatus(err))
			return
		}

		res, err := svc.PostPicture(r.Context(), domain.Picture{
			Data:    params.Data,
			Ts:      params.Ts,
			FormURL: params.FormURL,
		})
		writeResult(w, logger, "postPicture", res, err)
	}
}

func GetListHandler(svc server.FormService, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.GetList(r.Context())
		writeResult(w, logger, "getList", res, err)
	}
}

func DeletePicturesHandler(svc server.FormService, logger log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.DeletePictures(r.Context())
		writeResult(w, logger, "deletePictures", res, err)
	}
}

// decodeParams reads the JSON params object; an empty body means no params.
func decodeParams(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxParamsBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}

func paramsErrStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

// writeResult always answers 200 with the payload; operation errors are
// only logged.
func writeResult(w http.ResponseWriter, logger log.Logger, op string, payload interface{}, err error) {
	if err != nil {
		level.Error(logger).Log("msg", op+" failed",
			"kind", domain.KindOf(err),
			"err", err,
		)
	}

	w.Header().Set("Content-Type", "application/json")
	if err = json.NewEncoder(w).Encode(payload); err != nil {
		level.Error(logger).Log("msg", "error encoding response", "op", op, "err", err)
	}
}

func writeErr(w http.ResponseWriter, err error, status int) {
	w.WriteHeader(status)
	_, err = w.Write([]byte(err.Error()))
	if err != nil {
		fmt.Println("can't write response ", err)
	}
}
