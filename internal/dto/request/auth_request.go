package request

// RegisterRequest 用户注册请求
// 使用位置:
//   - internal/handler/user_handler.go: Register
//   - internal/service/user/service.go: Register
type RegisterRequest struct {
	Nick     string `json:"nick" binding:"required,min=3,max=24"`
	Name     string `json:"name" binding:"required,min=2,max=50"`
	LastName string `json:"lastName" binding:"required,min=2,max=50"`
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,min=8,max=255"`
}

// LoginRequest 邮箱密码登录
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// StatusRequest 修改在线状态
type StatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active away offline"`
}
