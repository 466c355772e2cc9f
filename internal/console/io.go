package console

//go:generate moq -out io_mock.go . IO

// IO ввод-вывод консоли
type IO interface {
	Println(a ...any)
	Printf(format string, a ...any)
	ReadInput(prompt string) (string, error)
}
