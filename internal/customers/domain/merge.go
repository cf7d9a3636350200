package domain

// Merge applies an incoming record to an existing profile and reports
// whether anything changed.
//
// PAN and Aadhaar are immutable once set: an incoming value only lands on an
// empty slot, and a conflicting incoming value is ignored (the stored value
// wins). Mobile, email, name and address fields are last-write-wins for
// non-empty incoming values.
func Merge(p *CustomerProfile, rec IncomingRecord) bool {
	keys := rec.Keys()
	changed := false

	if keys.PAN != "" && p.PAN == nil {
		pan := keys.PAN
		p.PAN = &pan
		changed = true
	}
	if keys.Aadhaar != "" && p.Aadhaar == nil {
		aadhaar := keys.Aadhaar
		p.Aadhaar = &aadhaar
		changed = true
	}
	if keys.Mobile != "" && (p.Mobile == nil || *p.Mobile != keys.Mobile) {
		mobile := keys.Mobile
		p.Mobile = &mobile
		changed = true
	}
	if keys.Email != "" && (p.Email == nil || *p.Email != keys.Email) {
		email := keys.Email
		p.Email = &email
		changed = true
	}

	changed = mergeField(&p.FirstName, rec.FirstName) || changed
	changed = mergeField(&p.LastName, rec.LastName) || changed
	changed = mergeField(&p.AddressLine, rec.AddressLine) || changed
	changed = mergeField(&p.City, rec.City) || changed
	changed = mergeField(&p.Pincode, rec.Pincode) || changed

	return changed
}

// NewProfileFromRecord builds a fresh profile from an incoming record with
// all identity keys normalized.
func NewProfileFromRecord(rec IncomingRecord) CustomerProfile {
	p := CustomerProfile{
		FirstName:   rec.FirstName,
		LastName:    rec.LastName,
		AddressLine: rec.AddressLine,
		City:        rec.City,
		Pincode:     rec.Pincode,
	}
	keys := rec.Keys()
	if keys.PAN != "" {
		pan := keys.PAN
		p.PAN = &pan
	}
	if keys.Aadhaar != "" {
		aadhaar := keys.Aadhaar
		p.Aadhaar = &aadhaar
	}
	if keys.Mobile != "" {
		mobile := keys.Mobile
		p.Mobile = &mobile
	}
	if keys.Email != "" {
		email := keys.Email
		p.Email = &email
	}
	return p
}

func mergeField(dst *string, src string) bool {
	if src == "" || *dst == src {
		return false
	}
	*dst = src
	return true
}
