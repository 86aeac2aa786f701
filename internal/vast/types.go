package vast

// Instance is the slice of a remote instance this system reads: enough to
// filter by selector, delete by identifier, and display operational
// metadata. Vendor fields beyond these are deliberately not modeled.
type Instance struct {
	ID           int64   `json:"id"`
	Label        string  `json:"label"`
	ActualStatus string  `json:"actual_status"`
	GPUName      string  `json:"gpu_name"`
	NumGPUs      int     `json:"num_gpus"`
	DPHTotal     float64 `json:"dph_total"` // cost in dollars per hour
}

// listResponse mirrors the control plane's list envelope.
type listResponse struct {
	Instances []Instance `json:"instances"`
}
