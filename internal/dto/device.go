package dto

type DeviceRegisterRequest struct {
	Name string `json:"name"`
	Type int    `json:"type"`
}

type DeviceRenameRequest struct {
	Name string `json:"name"`
}

type PushTokenRequest struct {
	PushToken string `json:"pushToken"`
}

type RememberRequest struct {
	Token string `json:"token"`
}

type DeviceResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Type         int    `json:"type"`
	CreationDate string `json:"creationDate"`
}
