package errs

// 错误码分段：500xx 通用，501xx 资源，502xx 冲突，503xx 传输
const (
	ServerInternalError = 50000 // 服务器内部错误
	ArgsError           = 50001 // 参数错误
	TokenInvalidError   = 50002 // 令牌无效/过期
	RecordNotFoundError = 50101 // 记录不存在
	DuplicateKeyError   = 50201 // 记录已存在（唯一约束冲突）
	TransportError      = 50301 // 传输失败（推送通道/下游不可达）
)

var (
	ErrInternal       = &CodeError{Code: ServerInternalError, Msg: "server internal error"}
	ErrArgs           = &CodeError{Code: ArgsError, Msg: "args invalid"}
	ErrTokenInvalid   = &CodeError{Code: TokenInvalidError, Msg: "token invalid"}
	ErrRecordNotFound = &CodeError{Code: RecordNotFoundError, Msg: "record not found"}
	ErrConflict       = &CodeError{Code: DuplicateKeyError, Msg: "record already exists"}
	ErrTransport      = &CodeError{Code: TransportError, Msg: "transport failure"}
)
