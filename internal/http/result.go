package httpapi

// Result 与前端 axios 拦截器约定的响应信封
// - code: 2000 success, -1 error, others are typed warnings
// - type: 'success' | 'error' | 'warning'
// - message: string
// - result: any
type Result[T any] struct {
	Code    int    `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
	Result  T      `json:"result"`
}

const (
	ResultSuccess = 2000
	ResultError   = -1
	// ResultEarlyPunchOut 提前下班需要确认 (HTTP 412, result carries the shortfall)
	ResultEarlyPunchOut = 41201
	// ResultStaleHistory 存储不可用, result is the cached history
	ResultStaleHistory = 20301
)

func Ok[T any](result T) Result[T] {
	return Result[T]{Code: ResultSuccess, Type: "success", Message: "ok", Result: result}
}

func Warn[T any](code int, message string, result T) Result[T] {
	return Result[T]{Code: code, Type: "warning", Message: message, Result: result}
}

func Fail(message string) Result[any] {
	return Result[any]{Code: ResultError, Type: "error", Message: message, Result: nil}
}
