package lightclient

import "errors"

var (
	// ErrUnauthorized is returned when someone other than the ibc host creates or updates a client
	ErrUnauthorized = errors.New("Unauthorized")
	// ErrClientStateNotFound is returned for unknown client ids
	ErrClientStateNotFound = errors.New("ClientStateNotFound")
	// ErrConsensusStateNotFound is returned when no consensus state is stored at the requested height
	ErrConsensusStateNotFound = errors.New("ConsensusStateNotFound")
	// ErrTimestampNotFound is returned when no processed time is stored at the requested height
	ErrTimestampNotFound = errors.New("TimestampNotFound")
	// ErrInsufficientQuorum is returned when the signatures of a header carry too little power
	ErrInsufficientQuorum = errors.New("InSufficientQuorum")
	// ErrFailedToSaveClientState is returned when a state cannot be encoded for storage
	ErrFailedToSaveClientState = errors.New("FailedToSaveClientState")
	// ErrClientAlreadyExists is returned when creating an existing client id
	ErrClientAlreadyExists = errors.New("ClientAlreadyExists")
	// ErrClientFrozen is returned when updating a client frozen for misbehaviour
	ErrClientFrozen = errors.New("ClientFrozen")
	// ErrClientExpired is returned when the latest consensus state is older than the trusting period
	ErrClientExpired = errors.New("ClientExpired")
	// ErrInvalidValidatorSet is returned when a header is signed by an unexpected validator set
	ErrInvalidValidatorSet = errors.New("InvalidValidatorSet")
	// ErrInvalidHeader is returned for headers of another network or from the future
	ErrInvalidHeader = errors.New("InvalidHeader")
	// ErrHeightNotAdvancing is returned for headers below the latest height
	ErrHeightNotAdvancing = errors.New("HeightNotAdvancing")
	// ErrTimestampNotMonotonic is returned for a newer header with an older timestamp
	ErrTimestampNotMonotonic = errors.New("TimestampNotMonotonic")
	// ErrConsensusStateExists is returned when a height is submitted twice with the same root
	ErrConsensusStateExists = errors.New("ConsensusStateExists")
	// ErrInvalidMerkleProof is returned when a membership proof does not fold to the stored root
	ErrInvalidMerkleProof = errors.New("InvalidMerkleProof")
	// ErrUnknownClientKind is returned for client states of an unsupported algorithm
	ErrUnknownClientKind = errors.New("UnknownClientKind")
)
