package domain

const (
	MailTypeCreateUser    = "create_user"
	MailTypeResetPassword = "reset_password"
	MailTypeChangeEmail   = "change_email"
	MailTypeRunFinished   = "run_finished"
)

type MailMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

type CreateUserMailData struct {
	FullName string `json:"fullName"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type ResetPasswordMailData struct {
	FullName   string `json:"fullName"`
	OTP        string `json:"otp"`
	Expiration int    `json:"expiration"`
}

type ChangeEmailMailData struct {
	FullName   string `json:"fullName"`
	OTP        string `json:"otp"`
	Expiration int    `json:"expiration"`
}

type RunFinishedMailData struct {
	FullName     string    `json:"fullName"`
	RunID        int64     `json:"runID"`
	ClusterName  string    `json:"clusterName"`
	Algorithm    string    `json:"algorithm"`
	Status       RunStatus `json:"status"`
	Fitness      float64   `json:"fitness"`
	Makespan     float64   `json:"makespan"`
	ErrorMessage string    `json:"errorMessage"`
}
