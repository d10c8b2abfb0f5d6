package server

import (
	"crypto/ecdsa"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Endpoint paths served by the signature service
const (
	SignatureStatusPath = "/api/commerce/signature-status"
	RegisterIntentPath  = "/api/commerce/intents"
)

// statusRequest mirrors the client's signature-status body
type statusRequest struct {
	IntentID   string `json:"intentId"`
	IntentHash string `json:"intentHash"`
}

// statusResponse is the signature-status answer
type statusResponse struct {
	IsSigned  bool   `json:"isSigned"`
	Signature string `json:"signature,omitempty"`
}

// Service is a minimal implementation of the backend the swap pipeline
// polls: it registers intent hashes and signs them with the operator key.
// It exists so the pipeline can run end-to-end against a dev chain; it
// performs no authorization beyond knowing the intent.
type Service struct {
	signerKey *ecdsa.PrivateKey
	logger    logrus.FieldLogger
	autoSign  bool

	mu         sync.Mutex
	registered map[string]string // intentId -> intentHash
	signatures map[string]string // intentId -> signature
}

// New creates a signature service. With autoSign enabled every queried
// intent is signed on first sight; otherwise only registered intents are.
func New(signerKeyHex string, autoSign bool, logger logrus.FieldLogger) (*Service, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(signerKeyHex, "0x"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid signer key")
	}

	return &Service{
		signerKey:  key,
		logger:     logger,
		autoSign:   autoSign,
		registered: make(map[string]string),
		signatures: make(map[string]string),
	}, nil
}

// SignerAddress returns the address corresponding to the operator key
func (s *Service) SignerAddress() string {
	return crypto.PubkeyToAddress(s.signerKey.PublicKey).Hex()
}

// Router builds the HTTP routes
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post(SignatureStatusPath, s.handleSignatureStatus)
	r.Post(RegisterIntentPath, s.handleRegisterIntent)

	return r
}

func (s *Service) handleRegisterIntent(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.IntentID == "" || req.IntentHash == "" {
		writeError(w, http.StatusBadRequest, "intentId and intentHash are required")
		return
	}

	s.mu.Lock()
	s.registered[req.IntentID] = req.IntentHash
	s.mu.Unlock()

	s.logger.WithField("intentId", req.IntentID).Info("intent registered")
	w.WriteHeader(http.StatusCreated)
}

func (s *Service) handleSignatureStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.IntentID == "" || req.IntentHash == "" {
		writeError(w, http.StatusBadRequest, "intentId and intentHash are required")
		return
	}

	signature, signed, err := s.signatureFor(req)
	if err != nil {
		s.logger.WithError(err).WithField("intentId", req.IntentID).Error("failed to sign intent")
		writeError(w, http.StatusInternalServerError, "signing failed")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statusResponse{
		IsSigned:  signed,
		Signature: signature,
	})
}

// signatureFor returns the cached signature for an intent, creating it when
// the intent is known (registered, or any intent with autoSign enabled)
func (s *Service) signatureFor(req statusRequest) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sig, ok := s.signatures[req.IntentID]; ok {
		return sig, true, nil
	}

	registeredHash, known := s.registered[req.IntentID]
	if known && registeredHash != req.IntentHash {
		return "", false, errors.New("intent hash mismatch")
	}
	if !known && !s.autoSign {
		return "", false, nil
	}

	hashBytes, err := hexutil.Decode(req.IntentHash)
	if err != nil || len(hashBytes) != 32 {
		return "", false, errors.New("intent hash must be a 32-byte hex value")
	}

	sigBytes, err := crypto.Sign(hashBytes, s.signerKey)
	if err != nil {
		return "", false, errors.Wrap(err, "failed to sign intent hash")
	}

	sig := hexutil.Encode(sigBytes)
	s.signatures[req.IntentID] = sig
	s.logger.WithField("intentId", req.IntentID).Info("intent signed")

	return sig, true, nil
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}
