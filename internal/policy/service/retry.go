package service

import (
	policystore "assura/internal/policy/store/policy"
)

func sqlRetryable(err error) bool {
	return policystore.IsSerializationFailure(err)
}
