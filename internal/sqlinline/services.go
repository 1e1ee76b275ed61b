package sqlinline

const QSelectServiceInstruction = `--sql 1d21dad4-f42a-47d9-98d6-c519055a6c25
select coalesce(ai_prompt, '')
from clinic_services
where clinic_id = $1::uuid and name = $2
limit 1;
`

const QUpsertServiceInstruction = `--sql 511d425d-d897-4c9d-9873-c775f00105e3
insert into clinic_services(clinic_id, name, ai_prompt)
values ($1::uuid, $2, $3)
on conflict (clinic_id, name) do update set
  ai_prompt = excluded.ai_prompt,
  updated_at = now();
`

const QSelectFirstServiceReference = `--sql cdd75f52-5da6-4419-9fca-745d50df44a7
select id, clinic_id, service_name, image_url, coalesce(description, '')
from service_references
where clinic_id = $1::uuid and service_name = $2
order by created_at asc
limit 1;
`
