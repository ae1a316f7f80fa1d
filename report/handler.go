// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package report

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// NewHandler returns an HTTP handler serving reports of src:
//
//	GET /stats                 the full report as JSON
//	GET /stats/text            the report as a text table, with allocation traces
//	GET /connections/{number}  one connection slot as JSON
//
// now defaults to time.Now when nil.
func NewHandler(src Source, now func() time.Time) http.Handler {
	if now == nil {
		now = time.Now
	}
	h := &handler{src: src, now: now}

	r := chi.NewRouter()
	r.Get("/stats", h.stats)
	r.Get("/stats/text", h.text)
	r.Get("/connections/{number}", h.connection)
	return r
}

type handler struct {
	src Source
	now func() time.Time
}

func (h *handler) stats(w http.ResponseWriter, req *http.Request) {
	h.writeJSON(w, req, Build(h.src, h.now()))
}

func (h *handler) text(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_ = WriteText(w, Build(h.src, h.now()), true)
}

func (h *handler) connection(w http.ResponseWriter, req *http.Request) {
	number, err := strconv.Atoi(chi.URLParam(req, "number"))
	if err != nil {
		http.Error(w, "connection number must be an integer", http.StatusBadRequest)
		return
	}
	r := Build(h.src, h.now())
	if number < 1 || number > len(r.Rows) {
		http.Error(w, "no such connection", http.StatusNotFound)
		return
	}
	h.writeJSON(w, req, r.Rows[number-1])
}

func (h *handler) writeJSON(w http.ResponseWriter, req *http.Request, v interface{}) {
	compact := req.URL.Query().Get("compact") != ""
	b, err := MarshalJSON(v, compact)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
}
