package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/hackgods/consultas-service/internal/appointment"
)

// Wire messages returned in {"message": ...} bodies.
const (
	msgInsertFailed  = "Erro ao inserir consulta"
	msgListFailed    = "Erro ao listar consultas"
	msgUpdateFailed  = "Erro ao atualizar consulta"
	msgDeleteFailed  = "Erro ao excluir consulta"
	msgDeleted       = "Consulta excluída com sucesso"
	msgNotFound      = "Consulta não encontrada"
	msgMissingID     = "ID não fornecido"
	msgResetFailed   = "Erro ao resetar o banco de dados"
	msgResetDone     = "Banco de dados resetado com sucesso"
	msgInvalidBody   = "Corpo da requisição inválido"
	msgRouteNotFound = "Rota não encontrada"
	msgNotAllowed    = "Método não permitido"
	msgRateLimited   = "Muitas requisições"
)

// RecordID accepts a JSON number or a numeric string. Set is false when
// the field was absent or null.
type RecordID struct {
	Value int64
	Set   bool
}

func (id *RecordID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = RecordID{}
		return nil
	}

	raw := string(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*id = RecordID{}
			return nil
		}
		raw = s
	}

	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("id must be an integer: %w", err)
	}
	*id = RecordID{Value: n, Set: true}
	return nil
}

// Present mirrors a falsy check: absent, null, "" and 0 all count as missing.
func (id RecordID) Present() bool {
	return id.Set && id.Value != 0
}

type CreateAppointmentRequest struct {
	appointment.Draft
}

type UpdateAppointmentRequest struct {
	ID RecordID `json:"id"`
	appointment.Draft
}

type DeleteAppointmentRequest struct {
	ID RecordID `json:"id"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
