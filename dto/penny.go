package dto

type PennyTipResponse struct {
	Tip    string `json:"tip"`
	Cached bool   `json:"cached"`
}

type PennyMessageResponse struct {
	Context string `json:"context"`
	Message string `json:"message"`
}
