package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/payrollkeeper/internal/server/models"
)

func actor(r *http.Request) int64 {
	id, _ := ActorFromContext(r.Context())
	return id
}

func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	var in models.SignInInput
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.svc.Auth.SignIn(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	pair, err := s.svc.Auth.Refresh(r.Context(), in.RefreshToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (s *Server) signUp(w http.ResponseWriter, r *http.Request) {
	var in models.CreateUserInput
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	uv, err := s.svc.Auth.SignUp(r.Context(), actor(r), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, uv)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	uv, err := s.svc.Users.GetUser(r.Context(), actor(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, uv)
}

func (s *Server) createCompany(w http.ResponseWriter, r *http.Request) {
	var in models.CreateCompanyInput
	if err := decodeJSON(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	cv, err := s.svc.Companies.CreateCompany(r.Context(), actor(r), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, cv)
}

func (s *Server) getCompany(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cv, err := s.svc.Companies.GetCompany(r.Context(), actor(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cv)
}

const defaultPageSize = 25

func (s *Server) listCompanies(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt64(r, "limit", defaultPageSize)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	offset, err := queryInt64(r, "offset", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	list, err := s.svc.Companies.ListCompanies(r.Context(), actor(r), models.CompanyFilter{Limit: limit, Offset: offset})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) getPayroll(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	pv, err := s.svc.Payrolls.GetPayroll(r.Context(), actor(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pv)
}

func (s *Server) listPayrolls(w http.ResponseWriter, r *http.Request) {
	var f models.PayrollFilter
	if r.URL.Query().Has("user_id") {
		id, err := queryInt64(r, "user_id", 0)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		f.UserID = &id
	}
	if period := r.URL.Query().Get("period"); period != "" {
		f.Period = &period
	}

	list, err := s.svc.Payrolls.ListPayrolls(r.Context(), actor(r), f)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
