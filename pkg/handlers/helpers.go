package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"churn-predict-api/pkg/models"
	"churn-predict-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// errUploadTooLarge はアップロード上限を超えた場合のエラー
var errUploadTooLarge = errors.New("upload too large")

// readUpload はフォームの "file" を読み込み、RecordSet に変換する
func readUpload(c *gin.Context, maxBytes int64) (*models.RecordSet, error) {
	if maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	}

	file, fileHeader, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: limit %dMB", errUploadTooLarge, maxBytes>>20)
		}
		return nil, &services.ValidationError{Reason: "No se recibió ningún archivo. Seleccione un archivo CSV."}
	}
	defer file.Close()

	return services.ReadTable(fileHeader.Filename, file)
}

// statusFor はパイプラインのエラーをHTTPステータスに対応付ける
func statusFor(err error) int {
	switch {
	case errors.Is(err, errUploadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrArtifactLoad):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// userMessage は画面・APIに出すスペイン語のメッセージを返す。内部エラーの詳細はログにだけ残す。
func userMessage(err error) string {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.Is(err, errUploadTooLarge):
		return "El archivo supera el tamaño máximo permitido."
	case errors.Is(err, services.ErrUnsupportedFormat):
		return "Formato de archivo no admitido. Suba un archivo .csv o .xlsx."
	case errors.Is(err, services.ErrValidation):
		return "El archivo no es válido."
	case errors.Is(err, services.ErrArtifactLoad):
		return "El modelo no está disponible en este momento. Inténtelo más tarde."
	default:
		return "Ocurrió un error inesperado al procesar el archivo."
	}
}

// respondError は {"success": false, "error": ...} を返す。検証エラーなら不足列も含める。
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("❌ [API] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	} else {
		log.Printf("⚠️ [API] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}

	body := gin.H{"success": false, "error": userMessage(err)}
	var verr *services.ValidationError
	if errors.As(err, &verr) && len(verr.Missing) > 0 {
		body["missing_columns"] = verr.Missing
	}
	c.AbortWithStatusJSON(status, body)
}

// formBool はフォーム値を真偽値として読む。未指定・不正値なら def。
func formBool(c *gin.Context, key string, def bool) bool {
	v, ok := c.GetPostForm(key)
	if !ok {
		v, ok = c.GetQuery(key)
	}
	if !ok || v == "" {
		return def
	}
	if v == "on" {
		return true
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
