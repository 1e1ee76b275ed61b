package sqlinline

const QSelectClinicByOwner = `--sql 19fc754c-e19f-4733-adfd-8b924559a157
select id, owner_id, name, type, coalesce(description, ''), services,
  coalesce(business_doc_url, ''), onboarding_completed, created_at, updated_at
from clinics
where owner_id = $1::uuid
limit 1;
`

const QUpsertClinicByOwner = `--sql 8e7e110e-e521-4a1a-8375-f6f6a8d0b063
insert into clinics(id, owner_id, name, type, description, services, business_doc_url, onboarding_completed)
values ($1::uuid, $2::uuid, $3, $4, $5, $6::text[], nullif($7, ''), true)
on conflict (owner_id) do update set
  name = excluded.name,
  type = excluded.type,
  description = excluded.description,
  services = excluded.services,
  business_doc_url = excluded.business_doc_url,
  onboarding_completed = true,
  updated_at = now()
returning id, created_at, updated_at;
`
