package registration

import (
	"fmt"
	"strings"

	"ms-registration/internal/catalog"
	"ms-registration/internal/models"

	"github.com/go-playground/validator/v10"
)

var allowedProofTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// Upload is a proof file attached to a submission.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

type validation struct {
	v        *validator.Validate
	maxBytes int64
}

func newValidation(maxBytes int64) *validation {
	return &validation{v: validator.New(), maxBytes: maxBytes}
}

func normalizeRequest(req models.RegistrationRequest) models.RegistrationRequest {
	req.Name = strings.TrimSpace(req.Name)
	req.RegistrationNumber = strings.ToUpper(strings.TrimSpace(req.RegistrationNumber))
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)
	req.Institution = strings.TrimSpace(req.Institution)
	req.TeamName = strings.TrimSpace(req.TeamName)
	req.UTRID = strings.ToUpper(strings.TrimSpace(req.UTRID))

	members := make([]models.Member, 0, len(req.Members))
	for _, m := range req.Members {
		m.Name = strings.TrimSpace(m.Name)
		m.RegistrationNumber = strings.ToUpper(strings.TrimSpace(m.RegistrationNumber))
		m.Email = strings.ToLower(strings.TrimSpace(m.Email))
		if m.Name == "" && m.RegistrationNumber == "" && m.Email == "" {
			continue
		}
		members = append(members, m)
	}
	req.Members = members

	if len(req.Extra) > 0 {
		extra := make(map[string]string, len(req.Extra))
		for k, v := range req.Extra {
			if v = strings.TrimSpace(v); v != "" {
				extra[strings.TrimSpace(k)] = v
			}
		}
		req.Extra = extra
	}
	return req
}

// required checks field presence in the order the form presents them.
func (val *validation) required(event catalog.Event, req models.RegistrationRequest) error {
	missing := func(field string) error {
		return &ValidationError{Field: field, Reason: "is required"}
	}

	if req.Name == "" {
		return missing("name")
	}
	if req.Email == "" {
		return missing("email")
	}
	if req.RegistrationNumber == "" {
		return missing("registrationNumber")
	}
	if event.RequirePhone && req.Phone == "" {
		return missing("phone")
	}
	if event.IsTeam() {
		if req.TeamName == "" {
			return missing("teamName")
		}
		if event.Team.Min > 1 && len(req.Members) == 0 {
			return missing("members")
		}
	}
	for _, field := range event.ExtraFields {
		if req.Extra[field] == "" {
			return missing(field)
		}
	}
	if event.Paid && req.UTRID == "" {
		return missing("utrId")
	}
	if event.Seated() && req.Seat == nil {
		return missing("seat")
	}
	return nil
}

func (val *validation) format(event catalog.Event, req models.RegistrationRequest, upload *Upload) error {
	if err := val.v.Var(req.Email, "email"); err != nil {
		return &ValidationError{Field: "email", Reason: "must be a valid email address"}
	}
	if req.Phone != "" {
		if err := val.v.Var(req.Phone, "numeric,len=10"); err != nil {
			return &ValidationError{Field: "phone", Reason: "must be exactly 10 digits"}
		}
	}

	if event.IsTeam() {
		size := len(req.Members) + 1
		if size < event.Team.Min || size > event.Team.Max {
			return &ValidationError{
				Field:  "members",
				Reason: fmt.Sprintf("team must have between %d and %d participants", event.Team.Min, event.Team.Max),
			}
		}
		for i, m := range req.Members {
			field := fmt.Sprintf("members[%d]", i)
			if m.Name == "" || m.RegistrationNumber == "" {
				return &ValidationError{Field: field, Reason: "name and registration number are required"}
			}
			if m.Email != "" {
				if err := val.v.Var(m.Email, "email"); err != nil {
					return &ValidationError{Field: field + ".email", Reason: "must be a valid email address"}
				}
			}
		}
	} else if len(req.Members) > 0 {
		return &ValidationError{Field: "members", Reason: "event does not accept team members"}
	}

	if req.UTRID != "" {
		minLen := event.UTRMinLength
		if minLen == 0 {
			minLen = catalog.DefaultUTRMinLength
		}
		if err := val.v.Var(req.UTRID, fmt.Sprintf("alphanum,min=%d", minLen)); err != nil {
			return &ValidationError{
				Field:  "utrId",
				Reason: fmt.Sprintf("must be at least %d letters or digits", minLen),
			}
		}
	}

	if event.RequireProof {
		if upload == nil || len(upload.Data) == 0 {
			return &ValidationError{Field: "proof", Reason: "payment screenshot is required"}
		}
	}
	if upload != nil && len(upload.Data) > 0 {
		if _, ok := allowedProofTypes[proofContentType(upload)]; !ok {
			return &ValidationError{Field: "proof", Reason: "must be a JPEG, PNG or WebP image"}
		}
		if val.maxBytes > 0 && int64(len(upload.Data)) > val.maxBytes {
			return &ValidationError{
				Field:  "proof",
				Reason: fmt.Sprintf("must be at most %d MB", val.maxBytes>>20),
			}
		}
	}

	if !event.Seated() && req.Seat != nil {
		return &ValidationError{Field: "seat", Reason: "event does not offer seat selection"}
	}
	return nil
}

func proofContentType(u *Upload) string {
	ct := strings.ToLower(strings.TrimSpace(u.ContentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "image/jpg" {
		ct = "image/jpeg"
	}
	return ct
}
