package respond

// UserRespond 用户公开资料
// 使用位置:
//   - internal/service/user/service.go: Register, Login, Me
type UserRespond struct {
	ID             uint   `json:"id"`
	Nick           string `json:"nick"`
	Name           string `json:"name"`
	LastName       string `json:"lastName"`
	Email          string `json:"email"`
	ActivityStatus string `json:"activityStatus"`
}

// LoginRespond 登录结果
type LoginRespond struct {
	AccessToken string      `json:"accessToken"`
	User        UserRespond `json:"user"`
}
