package models

// Indexes is the triple of request indexes an oracle may answer
type Indexes [3]uint8

// Contains reports whether idx is one of the assigned indexes
func (ix Indexes) Contains(idx uint8) bool {
	return ix[0] == idx || ix[1] == idx || ix[2] == idx
}

// RequestKey identifies an oracle status request
type RequestKey struct {
	Index uint8 `json:"index"`
	FlightKey
}

// OracleRequest collects responses for one request key until quorum
type OracleRequest struct {
	Key       RequestKey
	Requester Address
	Open      bool
	Status    StatusCode // final status once settled
	Responses map[StatusCode][]Address
}

// Responded reports whether oracle already answered this request with any status
func (r *OracleRequest) Responded(oracle Address) bool {
	for _, voters := range r.Responses {
		for _, v := range voters {
			if v == oracle {
				return true
			}
		}
	}
	return false
}
